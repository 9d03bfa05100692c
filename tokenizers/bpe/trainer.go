package bpe

import (
	"bufio"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/go-bpe/internal/files"
	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// MaxLineSize is the longest line accepted when reading a corpus file.
const MaxLineSize = 64 * 1024 * 1024

// Merge describes one step of training: the pair (Left, Right) occurred Count times in the corpus,
// and was merged into Symbol.
type Merge struct {
	Left, Right string
	Symbol      string
	ID          int

	// Added is false if Symbol was already in the vocabulary (reachable through a different pair), in
	// which case no new id was created.
	Added bool
	Count int
}

// Trainer builds a Vocabulary from a corpus by iteratively merging the most frequent adjacent pair of
// symbols. Create it with NewTrainer.
//
// Training is single-threaded. A Trainer holds no state across calls to Train, so it can be reused,
// but not concurrently if an OnMerge callback that isn't thread-safe is set.
type Trainer struct {
	config         *api.Config
	preTokenizer   PreTokenizer
	normalizer     normalizer
	useProgressBar bool
	onMerge        func(Merge)
}

// NewTrainer creates a Trainer for the given configuration. Only the training related fields are used:
// VocabSize, WordLevel, PreTokenizerPattern, Normalization and the special tokens.
//
// If config is nil, api.DefaultConfig is used, and VocabSize must be set with WithVocabSize.
func NewTrainer(config *api.Config) (*Trainer, error) {
	if config == nil {
		config = api.DefaultConfig()
	}
	c := *config
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t := &Trainer{config: &c}
	var err error
	if t.preTokenizer, err = newPreTokenizer(&c); err != nil {
		return nil, err
	}
	if t.normalizer, err = newNormalizer(c.Normalization); err != nil {
		return nil, err
	}
	return t, nil
}

// WithVocabSize sets the desired vocabulary size, including the special tokens.
func (t *Trainer) WithVocabSize(vocabSize int) *Trainer {
	t.config.VocabSize = vocabSize
	return t
}

// WithProgressBar configures the display of a progress bar (in stderr) during training. Defaults to false.
func (t *Trainer) WithProgressBar(useProgressBar bool) *Trainer {
	t.useProgressBar = useProgressBar
	return t
}

// WithOnMerge sets a function called synchronously after every merge.
func (t *Trainer) WithOnMerge(fn func(Merge)) *Trainer {
	t.onMerge = fn
	return t
}

// Config returns a copy of the configuration used by the trainer. It can be used with New to create
// a Tokenizer for the trained Vocabulary.
func (t *Trainer) Config() *api.Config {
	c := *t.config
	return &c
}

// Train builds a vocabulary of vocabSize symbols from the corpus lines with the default configuration.
// If wordLevel is true, lines are split on white space and merges never cross word boundaries.
func Train(corpus []string, vocabSize int, wordLevel bool) (*Vocabulary, error) {
	config := api.DefaultConfig()
	config.VocabSize = vocabSize
	config.WordLevel = wordLevel
	trainer, err := NewTrainer(config)
	if err != nil {
		return nil, err
	}
	return trainer.Train(corpus)
}

// Train builds a vocabulary from the corpus lines.
//
// The vocabulary starts with the special tokens, followed by every distinct character of the corpus (in
// order of first appearance). Then, while it is smaller than the configured VocabSize, the most frequent
// adjacent pair of symbols is merged into a new symbol. It stops early if no pair occurs more than once.
//
// Ties between equally frequent pairs are broken by taking the pair seen first when scanning the
// training units in corpus order, from left to right.
//
// It returns an error wrapping ErrInvalidVocabSize if VocabSize <= 0.
func (t *Trainer) Train(corpus []string) (*Vocabulary, error) {
	target := t.config.VocabSize
	if target <= 0 {
		return nil, errors.Wrapf(ErrInvalidVocabSize, "got vocab_size=%d", target)
	}

	vocab := newVocabularyBuilder()
	for _, token := range t.config.SpecialTokens() {
		vocab.add(token)
	}
	counter := newPairCounter()
	var numUnits int
	for _, line := range corpus {
		line = t.normalizer.apply(line)
		for _, r := range line {
			vocab.add(string(r))
		}
		if t.preTokenizer == nil {
			counter.addText(line)
			numUnits++
			continue
		}
		for _, piece := range t.preTokenizer.Split(line) {
			if piece.Mergeable {
				counter.addText(piece.Text)
				numUnits++
			}
		}
	}
	baseSize := vocab.Len()
	if target < baseSize {
		klog.Warningf("BPE vocab_size=%d is too small for the %d special tokens and corpus characters, using %d instead",
			target, baseSize, baseSize)
		target = baseSize
	}
	klog.V(1).Infof("BPE training: %s lines, %s units (%s distinct), base vocabulary of %d symbols, target %d",
		humanize.Comma(int64(len(corpus))), humanize.Comma(int64(numUnits)),
		humanize.Comma(int64(len(counter.units))), baseSize, target)

	var bar *progressbar.ProgressBar
	if t.useProgressBar && target > baseSize {
		bar = progressbar.NewOptions(target-baseSize,
			progressbar.OptionSetDescription("BPE merges"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	}

	counter.countAll()
	numMerges := 0
	for vocab.Len() < target {
		best, count, found := counter.mostFrequent()
		if !found {
			klog.V(1).Infof("BPE ending early at %d/%d symbols: no pair occurs more than once", vocab.Len(), target)
			break
		}
		symbol := best.left + best.right
		id, added := vocab.add(symbol)
		counter.merge(best, symbol)
		numMerges++
		if added && bar != nil {
			_ = bar.Add(1)
		}
		if klog.V(2).Enabled() {
			klog.Infof("  merge %4d: %q + %q -> %q (id=%d, count=%s)", numMerges, best.left, best.right, symbol,
				id, humanize.Comma(int64(count)))
		}
		if t.onMerge != nil {
			t.onMerge(Merge{Left: best.left, Right: best.right, Symbol: symbol, ID: id, Added: added, Count: count})
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	klog.V(1).Infof("BPE done: vocabulary of %s symbols after %s merges", humanize.Comma(int64(vocab.Len())),
		humanize.Comma(int64(numMerges)))
	return vocab.finalize(), nil
}

// TrainFromReader reads the corpus line by line from r, and calls Train.
func (t *Trainer) TrainFromReader(r io.Reader) (*Vocabulary, error) {
	corpus, err := readLines(r)
	if err != nil {
		return nil, err
	}
	return t.Train(corpus)
}

// TrainFromFile reads the corpus from a text file, one line at a time, and calls Train.
func (t *Trainer) TrainFromFile(filePath string) (*Vocabulary, error) {
	filePath, err := files.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open corpus file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	if info, err := f.Stat(); err == nil {
		klog.V(1).Infof("Reading corpus %q (%s)", filePath, humanize.Bytes(uint64(info.Size())))
	}
	corpus, err := readLines(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading corpus file %q", filePath)
	}
	return t.Train(corpus)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read corpus after %d lines", len(lines))
	}
	return lines, nil
}

// pair of adjacent symbols.
type pair struct {
	left, right string
}

// trainingUnit is a distinct word (or line, in character-level mode) of the corpus as a sequence of
// current symbols. weight is the number of times it occurs in the corpus.
type trainingUnit struct {
	symbols []string
	weight  int
}

// pairCounter holds the training units, and a cache of the pair counts that is updated incrementally
// after each merge: only the units holding the merged pair are recounted.
type pairCounter struct {
	units     []*trainingUnit
	unitIndex map[string]int

	counts map[pair]int
	// where maps each pair to the indices of the units where it occurs.
	where map[pair]map[int]struct{}
}

func newPairCounter() *pairCounter {
	return &pairCounter{
		unitIndex: make(map[string]int),
		counts:    make(map[pair]int),
		where:     make(map[pair]map[int]struct{}),
	}
}

// addText adds one occurrence of text as a training unit. Units are deduplicated, keeping the order of
// first appearance.
func (c *pairCounter) addText(text string) {
	if text == "" {
		return
	}
	if idx, found := c.unitIndex[text]; found {
		c.units[idx].weight++
		return
	}
	symbols := make([]string, 0, len(text))
	for _, r := range text {
		symbols = append(symbols, string(r))
	}
	c.unitIndex[text] = len(c.units)
	c.units = append(c.units, &trainingUnit{symbols: symbols, weight: 1})
}

// countAll initializes the pair counts from all units.
func (c *pairCounter) countAll() {
	for idx := range c.units {
		c.addUnitPairs(idx)
	}
	// Units are no longer looked up by text.
	c.unitIndex = nil
}

func (c *pairCounter) addUnitPairs(idx int) {
	unit := c.units[idx]
	for ii := 0; ii+1 < len(unit.symbols); ii++ {
		p := pair{unit.symbols[ii], unit.symbols[ii+1]}
		c.counts[p] += unit.weight
		unitSet := c.where[p]
		if unitSet == nil {
			unitSet = make(map[int]struct{})
			c.where[p] = unitSet
		}
		unitSet[idx] = struct{}{}
	}
}

func (c *pairCounter) removeUnitPairs(idx int) {
	unit := c.units[idx]
	for ii := 0; ii+1 < len(unit.symbols); ii++ {
		p := pair{unit.symbols[ii], unit.symbols[ii+1]}
		c.counts[p] -= unit.weight
		if c.counts[p] <= 0 {
			delete(c.counts, p)
		}
		if unitSet := c.where[p]; unitSet != nil {
			delete(unitSet, idx)
			if len(unitSet) == 0 {
				delete(c.where, p)
			}
		}
	}
}

// mostFrequent returns the pair with the highest count, if it is greater than 1.
// Ties are broken by the first occurrence in the scan order of the units.
func (c *pairCounter) mostFrequent() (best pair, count int, found bool) {
	numTied := 0
	for p, n := range c.counts {
		switch {
		case n > count:
			best, count, numTied = p, n, 1
		case n == count:
			numTied++
		}
	}
	if count <= 1 {
		return pair{}, 0, false
	}
	if numTied == 1 {
		return best, count, true
	}

	tied := make(map[pair]bool, numTied)
	firstUnit := -1
	for p, n := range c.counts {
		if n != count {
			continue
		}
		tied[p] = true
		for idx := range c.where[p] {
			if firstUnit == -1 || idx < firstUnit {
				firstUnit = idx
			}
		}
	}
	symbols := c.units[firstUnit].symbols
	for ii := 0; ii+1 < len(symbols); ii++ {
		p := pair{symbols[ii], symbols[ii+1]}
		if tied[p] {
			return p, count, true
		}
	}
	// Not reachable: firstUnit holds at least one of the tied pairs.
	return best, count, true
}

// merge replaces every non-overlapping occurrence (from left to right) of p by symbol in all units,
// and updates the counts accordingly.
func (c *pairCounter) merge(p pair, symbol string) {
	unitSet := c.where[p]
	indices := make([]int, 0, len(unitSet))
	for idx := range unitSet {
		indices = append(indices, idx)
	}
	for _, idx := range indices {
		c.removeUnitPairs(idx)
		unit := c.units[idx]
		unit.symbols = replacePair(unit.symbols, p, symbol)
		c.addUnitPairs(idx)
	}
}

// replacePair rewrites symbols in place.
func replacePair(symbols []string, p pair, merged string) []string {
	out := symbols[:0]
	for ii := 0; ii < len(symbols); ii++ {
		if ii+1 < len(symbols) && symbols[ii] == p.left && symbols[ii+1] == p.right {
			out = append(out, merged)
			ii++
			continue
		}
		out = append(out, symbols[ii])
	}
	return out
}
