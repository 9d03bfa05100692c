// bpe trains Byte-Pair-Encoding tokenizers, and uses them to encode and decode text.
//
// Usage:
//
//	bpe [-v=1] train -corpus=corpus.txt -vocab_size=5000 [-word_level] -output=~/tokenizers/my_bpe
//	bpe encode -tokenizer=~/tokenizers/my_bpe [-pad=64] "some text" ...
//	bpe decode -tokenizer=~/tokenizers/my_bpe 12 7 104 ...
//	bpe version
//
// encode and decode read one input per line from stdin if no arguments are given.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	gobpe "github.com/gomlx/go-bpe"
	"github.com/gomlx/go-bpe/tokenizers"
	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/gomlx/go-bpe/tokenizers/bpe"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] train|encode|decode|version [command flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer klog.Flush()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "train":
		err = train(args)
	case "encode":
		err = encode(args, os.Stdin, os.Stdout)
	case "decode":
		err = decode(args, os.Stdin, os.Stdout)
	case "version":
		fmt.Println(gobpe.Version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		klog.Flush()
		klog.Exitf("%s failed: %+v", command, err)
	}
}

func train(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	corpusPath := fs.String("corpus", "", "Text file to train on, one training line per line.")
	configPath := fs.String("config", "", "Optional tokenizer config (JSON or YAML) with training options. "+
		"Flags explicitly set override its values.")
	vocabSize := fs.Int("vocab_size", 5000, "Desired vocabulary size, including special tokens.")
	wordLevel := fs.Bool("word_level", false, "Split lines in words, and don't merge across words.")
	pattern := fs.String("pattern", "", "regexp2 pattern to split words, implies -word_level. "+
		"Use \"gpt4\" for a GPT-4 like pattern. Default splits on white space.")
	specials := fs.String("special_tokens", "<|PAD|>,<|SOS|>,<|EOS|>", "Comma separated pad, beginning "+
		"and end of sentence tokens. The unknown token is always <|UNK|>.")
	progress := fs.Bool("progress", true, "Display a progress bar.")
	output := fs.String("output", "", "Directory where to save the trained tokenizer.")
	_ = fs.Parse(args)
	if *corpusPath == "" || *output == "" {
		fs.Usage()
		return errors.New("-corpus and -output are required")
	}

	config := api.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = api.ParseConfigFile(*configPath); err != nil {
			return err
		}
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if *configPath == "" || setFlags["vocab_size"] {
		config.VocabSize = *vocabSize
	}
	if *configPath == "" || setFlags["word_level"] {
		config.WordLevel = *wordLevel
	}
	if *pattern != "" {
		config.WordLevel = true
		config.PreTokenizerPattern = *pattern
		if *pattern == "gpt4" {
			config.PreTokenizerPattern = bpe.GPT4Pattern
		}
	}
	if *configPath == "" || setFlags["special_tokens"] {
		parts := strings.Split(*specials, ",")
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		config.PadToken, config.BosToken, config.EosToken = parts[0], parts[1], parts[2]
		config.AdditionalSpecialTokens = parts[3:]
	}

	trainer, err := bpe.NewTrainer(config)
	if err != nil {
		return err
	}
	vocab, err := trainer.WithProgressBar(*progress).TrainFromFile(*corpusPath)
	if err != nil {
		return err
	}
	tokenizer, err := bpe.New(trainer.Config(), vocab)
	if err != nil {
		return err
	}
	if err = tokenizer.Save(*output); err != nil {
		return err
	}
	klog.Infof("Saved tokenizer with %d symbols to %q", vocab.Len(), *output)
	return nil
}

func encode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	tokenizerPath := fs.String("tokenizer", "", "Tokenizer directory or config file.")
	pad := fs.Int("pad", 0, "If > 0, pad encodings to this length (BPE tokenizers only).")
	_ = fs.Parse(args)
	tokenizer, err := tokenizers.Load(*tokenizerPath)
	if err != nil {
		return err
	}
	return forEachInput(fs.Args(), stdin, func(text string) error {
		var ids []int
		if bpeTokenizer, ok := tokenizer.(*bpe.Tokenizer); ok {
			ids = bpeTokenizer.EncodeWithPadding(text, *pad)
		} else {
			ids = tokenizer.Encode(text)
		}
		parts := make([]string, len(ids))
		for ii, id := range ids {
			parts[ii] = strconv.Itoa(id)
		}
		_, err := fmt.Fprintln(stdout, strings.Join(parts, " "))
		return err
	})
}

func decode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	tokenizerPath := fs.String("tokenizer", "", "Tokenizer directory or config file.")
	_ = fs.Parse(args)
	tokenizer, err := tokenizers.Load(*tokenizerPath)
	if err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return decodeLine(tokenizer, strings.Join(fs.Args(), " "), stdout)
	}
	return forEachInput(nil, stdin, func(line string) error {
		return decodeLine(tokenizer, line, stdout)
	})
}

func decodeLine(tokenizer tokenizers.Tokenizer, line string, stdout io.Writer) error {
	fields := strings.Fields(line)
	ids := make([]int, len(fields))
	for ii, field := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			return errors.Wrapf(err, "invalid token id %q", field)
		}
		ids[ii] = id
	}
	text, err := tokenizer.Decode(ids)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, text)
	return err
}

// forEachInput calls fn for each argument or, if there are none, for each line of stdin.
func forEachInput(args []string, stdin io.Reader, fn func(string) error) error {
	if len(args) > 0 {
		for _, arg := range args {
			if err := fn(arg); err != nil {
				return err
			}
		}
		return nil
	}
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), bpe.MaxLineSize)
	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "reading stdin")
}
