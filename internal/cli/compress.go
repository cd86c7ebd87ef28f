package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/ctxcompress/internal/config"
	"github.com/raphaelgruber/ctxcompress/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	compressCorpus          string
	compressLevel           int
	compressDocDir          string
	compressDocExt          string
	compressQuestions       string
	compressOutput          string
	compressPrompt          string
	compressServerURLs      string
	compressBackend         string
	compressModel           string
	compressRequestTimeout  time.Duration
	compressRateLimit       float64
	compressOnError         string
	compressIncludeQuestion bool
	compressConfigFile      string
	compressNoProgress      bool
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Compress the corpus for every question",
	Long: `Compress the document corpus once per question and write the results.

Paths default from --corpus and --level:
  documents  {corpus_root}/{corpus}/level{level}/*.md
  questions  {question_root}/questions_{corpus}.jsonl
  output     {output_dir}/{corpus}_level{level}_compressed.jsonl

Roots come from CTXCOMPRESS_CORPUS_ROOT, CTXCOMPRESS_QUESTION_ROOT and
CTXCOMPRESS_OUTPUT_DIR. A YAML job file (--config) overrides the environment
and flags override both.

--on-error decides what a failed request does:
  record  write a record with an "error" field and continue (default)
  skip    log the failure and continue
  abort   stop the job, keeping records already written

Examples:
  ctxcompress compress --corpus financial_zh --level 2
  ctxcompress compress --corpus medical_en --level 3 \
    --server-urls http://gpu0:8091/compress,http://gpu1:8091/compress
  ctxcompress compress --config jobs/legal.yaml --on-error abort
  ctxcompress compress --backend openai --model qwen-long \
    --server-urls http://gpu0:8000/v1`,
	Args: cobra.NoArgs,
	RunE: runCompress,
}

func init() {
	addJobFlags(compressCmd)
	compressCmd.Flags().BoolVar(&compressNoProgress, "no-progress", false, "disable the interactive progress display")
}

// addJobFlags registers the flags that shape a job; shared with the config command.
func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&compressCorpus, "corpus", config.DefaultCorpus, "corpus name (e.g. financial_zh, medical_en)")
	f.IntVar(&compressLevel, "level", config.DefaultLevel, "corpus level")
	f.StringVar(&compressDocDir, "doc-dir", "", "directory containing documents (default derived from corpus and level)")
	f.StringVar(&compressDocExt, "doc-ext", ".md", "document file extension")
	f.StringVar(&compressQuestions, "questions", "", "question file (default derived from corpus)")
	f.StringVarP(&compressOutput, "output", "o", "", "output file (default derived from corpus and level)")
	f.StringVar(&compressPrompt, "prompt", config.DefaultPrompt, "compression instruction")
	f.StringVar(&compressServerURLs, "server-urls", config.DefaultServerURL, "comma-separated compression server URLs")
	f.StringVar(&compressBackend, "backend", config.BackendHTTP, "service protocol: http, openai, ollama or anthropic")
	f.StringVar(&compressModel, "model", "", "model name for LLM backends")
	f.DurationVar(&compressRequestTimeout, "request-timeout", config.DefaultRequestTimeout, "timeout for a single request (0 disables)")
	f.Float64Var(&compressRateLimit, "rps", 0, "max requests per second per endpoint (0 = unlimited)")
	f.StringVar(&compressOnError, "on-error", string(config.OnErrorRecord), "failed request policy: record, skip or abort")
	f.BoolVar(&compressIncludeQuestion, "include-question", true, "copy the question text into each record")
	f.StringVar(&compressConfigFile, "config", "", "YAML job file")
}

// buildJob layers environment, job file and explicitly set flags.
func buildJob(cmd *cobra.Command) (config.Job, error) {
	job := config.NewJob(cfg)
	if compressConfigFile != "" {
		if err := config.LoadFile(compressConfigFile, &job); err != nil {
			return job, err
		}
	}

	f := cmd.Flags()
	if f.Changed("corpus") || job.Corpus == "" {
		job.Corpus = compressCorpus
	}
	if f.Changed("level") {
		job.Level = compressLevel
	}
	if f.Changed("doc-dir") {
		job.DocDir = compressDocDir
	}
	if f.Changed("doc-ext") {
		job.DocExt = compressDocExt
	}
	if f.Changed("questions") {
		job.Questions = compressQuestions
	}
	if f.Changed("output") {
		job.Output = compressOutput
	}
	if f.Changed("prompt") {
		job.Prompt = compressPrompt
	}
	if f.Changed("server-urls") {
		job.ServerURLs = config.SplitURLs(compressServerURLs)
	}
	if f.Changed("backend") {
		job.Backend = compressBackend
	}
	if f.Changed("model") {
		job.Model = compressModel
	}
	if f.Changed("request-timeout") {
		job.RequestTimeout = compressRequestTimeout
	}
	if f.Changed("rps") {
		job.RateLimit = compressRateLimit
	}
	if f.Changed("on-error") {
		job.OnError = config.ErrorPolicy(compressOnError)
	}
	if f.Changed("include-question") {
		job.IncludeQuestion = compressIncludeQuestion
	}

	job.Resolve(cfg)
	policy, err := config.ParseErrorPolicy(string(job.OnError))
	if err != nil {
		return job, err
	}
	job.OnError = policy
	if err := job.Validate(); err != nil {
		return job, fmt.Errorf("invalid job configuration: %w", err)
	}
	return job, nil
}

func runCompress(cmd *cobra.Command, args []string) error {
	job, err := buildJob(cmd)
	if err != nil {
		return err
	}

	useProgress := !compressNoProgress && term.IsTerminal(int(os.Stdout.Fd()))
	logger, cleanup := config.SetupLogger(cfg, config.LoggerOptions{
		Verbose:     verbose,
		QuietStderr: useProgress,
	})
	defer func() { _ = cleanup() }()

	out := cmd.OutOrStdout()
	printJobConfig(out, job)

	factory, err := service.NewCompressorFactory(cfg, job)
	if err != nil {
		return err
	}
	svc := service.NewCompressService(factory, logger)
	j := service.NewJob(job)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *service.Summary
	if useProgress {
		summary, err = RunJobProgress(ctx, svc, j)
	} else {
		summary, err = svc.Run(ctx, j)
	}
	if summary != nil {
		printSummary(out, defaultTheme, summary)
	}
	return err
}

// printJobConfig echoes the resolved inputs before the run starts.
func printJobConfig(w io.Writer, job config.Job) {
	fmt.Fprintf(w, "Corpus:             %s (level %d)\n", job.Corpus, job.Level)
	fmt.Fprintf(w, "Document directory: %s\n", job.DocDir)
	fmt.Fprintf(w, "Questions file:     %s\n", job.Questions)
	fmt.Fprintf(w, "Output file:        %s\n", job.Output)
	fmt.Fprintf(w, "Endpoints:          %d (%s)\n", len(job.ServerURLs), job.Backend)
}
