package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/comet/internal/pipeline"
	"github.com/ajitpratap0/comet/pkg/chunk"
	"github.com/ajitpratap0/comet/pkg/compression"
	"github.com/ajitpratap0/comet/pkg/config"
	"github.com/ajitpratap0/comet/pkg/formats"
	jsonpool "github.com/ajitpratap0/comet/pkg/json"
	"github.com/ajitpratap0/comet/pkg/logger"
	"github.com/ajitpratap0/comet/pkg/observability"
	"github.com/ajitpratap0/comet/pkg/performance"
	"github.com/ajitpratap0/comet/pkg/pool"
	"github.com/ajitpratap0/comet/pkg/schema"
	stringpool "github.com/ajitpratap0/comet/pkg/strings"
)

var version = "0.1.0"

// errRowLimit stops a stream once --limit rows have been written.
var errRowLimit = errors.New("row limit reached")

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	var (
		configFile      string
		logLevel        string
		separator       string
		qualifier       string
		lineBreak       string
		encodingName    string
		noHeader        bool
		workers         int
		chunkSize       int
		maxRowSize      int
		maxLoadedChunks int
		timeout         time.Duration
		trace           bool
	)

	root := &cobra.Command{
		Use:   "comet",
		Short: "Comet - parallel delimited-text ingestion engine",
		Long: `Comet parses delimited text (CSV and friends) in parallel row-aligned chunks.
It profiles column types, streams rows in order, and encodes sources into a
fixed-width binary columnar layout with Arrow and Avro exports.`,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Path to YAML or JSON configuration file")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&separator, "separator", ",", "Field separator (one byte; \\t for tab)")
	pf.StringVar(&qualifier, "qualifier", "\"", "Text qualifier (one byte)")
	pf.StringVar(&lineBreak, "line-break", "\\n", "Row terminator (one byte)")
	pf.StringVar(&encodingName, "encoding", "utf-8", "Source character encoding")
	pf.BoolVar(&noHeader, "no-header", false, "Treat the first row as data and synthesize column names")
	pf.IntVar(&workers, "workers", 0, "Number of parse workers (0 = all CPUs)")
	pf.IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "Tentative chunk size in bytes")
	pf.IntVar(&maxRowSize, "max-row-size", config.DefaultMaxRowSize, "Largest distance in bytes a single row may span")
	pf.IntVar(&maxLoadedChunks, "max-loaded-chunks", config.DefaultMaxLoadedChunks, "Chunks resident at once while streaming")
	pf.DurationVar(&timeout, "timeout", 0, "Abort the run after this long (0 = no timeout)")
	pf.BoolVar(&trace, "trace", false, "Emit tracing spans to stderr")

	// buildConfig layers flag overrides over the config file (or defaults).
	// Only flags the user actually set override file values.
	buildConfig := func(cmd *cobra.Command) (*config.Config, error) {
		cfg := config.New()
		if configFile != "" {
			loaded, err := config.LoadFile(configFile)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}

		fl := cmd.Flags()
		if fl.Changed("separator") {
			cfg.Format.Separator = separator
		}
		if fl.Changed("qualifier") {
			cfg.Format.Qualifier = qualifier
		}
		if fl.Changed("line-break") {
			cfg.Format.LineBreak = lineBreak
		}
		if fl.Changed("encoding") {
			cfg.Format.Encoding = encodingName
		}
		if noHeader {
			cfg.Format.FirstRowHeader = false
		}
		if fl.Changed("workers") {
			cfg.Runtime.Workers = workers
		}
		if fl.Changed("chunk-size") {
			cfg.Limits.ChunkSize = chunkSize
		}
		if fl.Changed("max-row-size") {
			cfg.Limits.MaxRowSize = maxRowSize
		}
		if fl.Changed("max-loaded-chunks") {
			cfg.Limits.MaxLoadedChunks = maxLoadedChunks
		}
		if fl.Changed("log-level") {
			cfg.Observability.LogLevel = logLevel
		}
		if trace {
			cfg.Observability.EnableTracing = true
		}
		return cfg, nil
	}

	// setup resolves configuration, the logger, tracing, and the run context.
	setup := func(cmd *cobra.Command) (*config.Config, *zap.Logger, *observability.Tracing, context.Context, context.CancelFunc, error) {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		if err := logger.Init(logger.Config{
			Level:       cfg.Observability.LogLevel,
			Encoding:    "json",
			OutputPaths: []string{"stderr"},
		}); err != nil {
			return nil, nil, nil, nil, nil, err
		}
		log := logger.Get().With(zap.String("component", "comet-cli"))

		tracing, err := observability.Setup(cfg.Observability.EnableTracing, "comet", os.Stderr)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}

		ctx := context.Background()
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
		}
		return cfg, log, tracing, ctx, cancel, nil
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Comet v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// Analyze command
	var analyzeOutput, analyzeFormat string
	analyzeCmd := &cobra.Command{
		Use:   "analyze <input>",
		Short: "Profile column types and value statistics",
		Long: `Analyze parses the whole source and reports, per column, how many values
look like integers, floats, strings or nothing at all, along with raw length
ranges and the dominant type the binary encoder would pick.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, tracing, ctx, cancel, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer shutdownTracing(tracing, log)
			return runAnalyze(ctx, cfg, log, tracing, args[0], analyzeOutput, analyzeFormat)
		},
	}
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "-", "Report destination ('-' for stdout)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "Report format (json, yaml)")
	root.AddCommand(analyzeCmd)

	// Convert command
	var convertOutput, convertFormat, convertCompress string
	convertCmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Encode a source into a columnar file",
		Long: `Convert parses the whole source into the fixed-width binary columnar
layout and writes it as a comet binary container, an Arrow IPC file, or an
Avro object container file.

Example:
  comet convert data.csv -o data.cbc
  comet convert data.csv -o data.arrow --format arrow
  comet convert data.csv -o data.cbc.zst --compress zstd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, tracing, ctx, cancel, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer shutdownTracing(tracing, log)
			return runConvert(ctx, cfg, log, tracing, args[0], convertOutput, convertFormat, convertCompress)
		},
	}
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file path (required)")
	convertCmd.Flags().StringVar(&convertFormat, "format", "binary", "Output format (binary, arrow, avro)")
	convertCmd.Flags().StringVar(&convertCompress, "compress", "", "Compress the output (gzip, zstd, lz4, snappy, s2; avro: deflate, snappy)")
	_ = convertCmd.MarkFlagRequired("output")
	root.AddCommand(convertCmd)

	// Stream command
	var streamOutput, streamFormat string
	var streamLimit int
	streamCmd := &cobra.Command{
		Use:   "stream <input>",
		Short: "Stream rows in source order as JSON lines or normalized CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, tracing, ctx, cancel, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer shutdownTracing(tracing, log)
			return runStream(ctx, cfg, log, tracing, args[0], streamOutput, streamFormat, streamLimit)
		},
	}
	streamCmd.Flags().StringVarP(&streamOutput, "output", "o", "-", "Destination path ('-' for stdout)")
	streamCmd.Flags().StringVar(&streamFormat, "format", "jsonl", "Output format (jsonl, csv)")
	streamCmd.Flags().IntVar(&streamLimit, "limit", 0, "Stop after this many rows (0 = all)")
	root.AddCommand(streamCmd)

	// Inspect command
	var inspectRows int
	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Describe a comet binary columnar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0], inspectRows)
		},
		Args: cobra.ExactArgs(1),
	}
	inspectCmd.Flags().IntVar(&inspectRows, "rows", 10, "Sample rows to print (0 = none)")
	root.AddCommand(inspectCmd)

	// Init command
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file with defaults filled in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "comet.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(path)
		},
	}
	root.AddCommand(initCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ColumnReport describes one column of the analyze report.
type ColumnReport struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Width   int    `json:"width" yaml:"width"`
	MinLen  int    `json:"min_len" yaml:"min_len"`
	MaxLen  int    `json:"max_len" yaml:"max_len"`
	Empty   int64  `json:"empty" yaml:"empty"`
	Ints    int64  `json:"ints" yaml:"ints"`
	Floats  int64  `json:"floats" yaml:"floats"`
	Strings int64  `json:"strings" yaml:"strings"`
}

// Report is the analyze command's output document.
type Report struct {
	RunID     string         `json:"run_id" yaml:"run_id"`
	Source    string         `json:"source" yaml:"source"`
	Rows      int64          `json:"rows" yaml:"rows"`
	Malformed int64          `json:"malformed" yaml:"malformed"`
	Columns   []ColumnReport `json:"columns" yaml:"columns"`
}

func buildReport(source string, res *pipeline.ProfileResult) *Report {
	report := &Report{
		RunID:     res.RunID,
		Source:    source,
		Rows:      res.Rows,
		Malformed: res.Malformed,
		Columns:   make([]ColumnReport, len(res.Columns)),
	}
	for i, stat := range res.Columns {
		typ := stat.DominantType()
		report.Columns[i] = ColumnReport{
			Name:    stat.Name,
			Type:    typ.String(),
			Width:   schema.WidthFor(typ, stat.MaxLen),
			MinLen:  stat.MinLen,
			MaxLen:  stat.MaxLen,
			Empty:   stat.Empty,
			Ints:    stat.Ints,
			Floats:  stat.Floats,
			Strings: stat.Strings,
		}
	}
	return report
}

// runAnalyze profiles the source and writes the report
func runAnalyze(ctx context.Context, cfg *config.Config, log *zap.Logger, tracing *observability.Tracing, input, output, format string) error {
	p, err := pipeline.New(cfg, log, tracing)
	if err != nil {
		return err
	}

	monitor := performance.NewResourceMonitor(log)
	monitor.Start(5 * time.Second)
	defer monitor.Stop()

	start := time.Now()
	res, err := p.Analyze(ctx, input)
	if err != nil {
		return err
	}

	report := buildReport(input, res)
	var data []byte
	switch format {
	case "json":
		data, err = jsonpool.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(report)
	default:
		err = fmt.Errorf("unsupported report format %q (want json or yaml)", format)
	}
	if err != nil {
		return err
	}

	if err := writeOutput(output, data); err != nil {
		return err
	}

	duration := time.Since(start)
	usage := monitor.Usage()
	log.Info("analyze finished",
		zap.Int64("rows", res.Rows),
		zap.Int64("malformed", res.Malformed),
		zap.Duration("duration", duration),
		zap.Float64("rows_per_second", float64(res.Rows)/duration.Seconds()),
		zap.Uint64("rss_mb", usage.MemoryRSS/1024/1024))
	return nil
}

// runConvert encodes the source and writes it in the requested format
func runConvert(ctx context.Context, cfg *config.Config, log *zap.Logger, tracing *observability.Tracing, input, output, formatName, compressName string) error {
	format, err := formats.ParseFormat(formatName)
	if err != nil {
		return err
	}
	alg := compression.None
	if compressName != "" {
		if alg, err = compression.ParseAlgorithm(compressName); err != nil {
			return err
		}
	}

	p, err := pipeline.New(cfg, log, tracing)
	if err != nil {
		return err
	}

	monitor := performance.NewResourceMonitor(log)
	monitor.Start(5 * time.Second)
	defer monitor.Stop()

	start := time.Now()
	res, err := p.EncodeBinary(ctx, input)
	if err != nil {
		return err
	}

	file := &formats.File{Header: res.Header, Data: res.Buffer}
	var payload bytes.Buffer
	switch format {
	case formats.FormatBinary:
		_, err = formats.WriteBinary(&payload, res.Header, res.Buffer)
	case formats.FormatArrow:
		err = formats.WriteArrow(&payload, file)
	case formats.FormatAvro:
		// Avro compresses inside its own blocks, so the codec name goes to
		// the container and the outer stream stays raw.
		var codecName string
		if codecName, err = formats.AvroCompressionName(alg); err == nil {
			err = formats.WriteAvro(&payload, file, codecName)
			alg = compression.None
		}
	}
	if err != nil {
		return err
	}

	written, err := writeCompressed(output, &payload, alg)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	usage := monitor.Usage()
	log.Info("convert finished",
		zap.String("format", string(format)),
		zap.Int64("rows", res.Rows),
		zap.Int64("malformed", res.Malformed),
		zap.Int64("bytes_written", written),
		zap.Duration("duration", duration),
		zap.Float64("rows_per_second", float64(res.Rows)/duration.Seconds()),
		zap.Float64("cpu_percent", usage.CPUPercent),
		zap.Uint64("rss_mb", usage.MemoryRSS/1024/1024))
	return nil
}

// runStream re-emits every row in source order, as one JSON object per
// line or as normalized CSV
func runStream(ctx context.Context, cfg *config.Config, log *zap.Logger, tracing *observability.Tracing, input, output, formatName string, limit int) error {
	p, err := pipeline.New(cfg, log, tracing)
	if err != nil {
		return err
	}

	// Column names come from a header-only pass; the stream below reuses
	// them for every row.
	columns, err := p.Columns(ctx, input)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	var file *os.File
	if output != "" && output != "-" {
		if file, err = os.Create(output); err != nil { //nolint:gosec // G304: path is caller-controlled
			return fmt.Errorf("failed to create output file %s: %w", output, err)
		}
		out = file
	}
	bw := bufio.NewWriterSize(out, 64*1024)

	var rows int64
	var fn pipeline.RowFunc
	var finish func() error
	switch formatName {
	case "jsonl":
		enc := jsonpool.NewStreamingEncoder(bw, false)
		obj := jsonpool.NewObjectWriter(256)
		fn = func(v *chunk.RowView) error {
			obj.Reset()
			for i, name := range columns {
				value, err := v.Value(i)
				if err != nil {
					return err
				}
				if err := obj.Field(name, value); err != nil {
					return err
				}
			}
			obj.End()
			if err := enc.Encode(jsonpool.RawMessage(obj.Bytes())); err != nil {
				return err
			}
			rows++
			if limit > 0 && rows >= int64(limit) {
				return errRowLimit
			}
			return nil
		}
		finish = enc.Close
	case "csv":
		sep, qual, lb, err := cfg.Format.DelimiterBytes()
		if err != nil {
			return err
		}
		rb := stringpool.NewRowBuilder(sep, qual, lb, 64*1024)
		defer rb.Close()
		rb.WriteRow(columns)

		fields := pool.GetStringSlice()
		defer func() { pool.PutStringSlice(fields) }()
		fn = func(v *chunk.RowView) error {
			fields = fields[:0]
			for i := range columns {
				value, err := v.Value(i)
				if err != nil {
					return err
				}
				fields = append(fields, value)
			}
			rb.WriteRow(fields)
			// Drain in batches so memory stays flat on big sources.
			if len(rb.Bytes()) >= 32*1024 {
				if _, err := bw.Write(rb.Bytes()); err != nil {
					return err
				}
				rb.Reset()
			}
			rows++
			if limit > 0 && rows >= int64(limit) {
				return errRowLimit
			}
			return nil
		}
		finish = func() error {
			_, err := bw.Write(rb.Bytes())
			return err
		}
	default:
		return fmt.Errorf("unsupported stream format %q (want jsonl or csv)", formatName)
	}

	start := time.Now()
	res, err := p.Each(ctx, input, fn)
	if err != nil && !errors.Is(err, errRowLimit) {
		return err
	}

	if err := finish(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close output file %s: %w", output, err)
		}
	}

	var malformed int64
	if res != nil {
		rows = res.Rows
		malformed = res.Malformed
	}
	duration := time.Since(start)
	log.Info("stream finished",
		zap.Int64("rows", rows),
		zap.Int64("malformed", malformed),
		zap.Duration("duration", duration),
		zap.Float64("rows_per_second", float64(rows)/duration.Seconds()))
	return nil
}

// runInspect prints the layout and a sample of a binary columnar file
func runInspect(input string, sampleRows int) error {
	f, err := os.Open(input) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer f.Close()

	file, err := formats.ReadBinary(f)
	if err != nil {
		return err
	}

	h := file.Header
	fmt.Printf("%s: %d columns, %d rows, %d bytes/row, %d data bytes\n",
		filepath.Base(input), h.ColumnCount(), h.RowCount, h.RowLength, h.DataLength)
	fmt.Println("\nColumns (storage order):")
	for _, col := range h.Columns {
		fmt.Printf("  %-24s %-7s width=%-5d offset=%-7d csv_position=%d\n",
			col.Name, col.Type, col.Width, col.Offset, col.HeaderIndex)
	}

	if sampleRows <= 0 || file.Rows() == 0 {
		return nil
	}
	n := sampleRows
	if n > file.Rows() {
		n = file.Rows()
	}
	fmt.Printf("\nFirst %d rows:\n", n)
	for row := 0; row < n; row++ {
		fmt.Printf("  row %d:", row)
		for i := range h.Columns {
			col := &h.Columns[i]
			fmt.Printf(" %s=%s", col.Name, cellString(file, col, row))
		}
		fmt.Println()
	}
	return nil
}

// cellString renders one cell of a binary columnar file for the inspect
// sample listing. String cells are quoted so padding and separators show.
func cellString(f *formats.File, col *schema.BinaryColumn, row int) string {
	switch col.Type {
	case schema.TypeInt:
		return stringpool.ValueToString(f.Int64At(col, row))
	case schema.TypeFloat:
		return stringpool.ValueToString(f.Float64At(col, row))
	default:
		return strconv.Quote(f.StringAt(col, row))
	}
}

// runInit writes a starter config file without overwriting an existing one
func runInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file %s", path)
	}
	if err := config.SaveFile(path, config.New()); err != nil {
		return err
	}
	fmt.Printf("wrote starter configuration to %s\n", path)
	return nil
}

// writeOutput sends data to a file, or to stdout for "-"
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: reports are not secrets
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeCompressed writes payload to path, stream-compressing when alg is
// not None, and reports the bytes that landed on disk.
func writeCompressed(path string, payload *bytes.Buffer, alg compression.Algorithm) (int64, error) {
	out, err := os.Create(path) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return 0, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	if alg == compression.None {
		_, err = out.Write(payload.Bytes())
	} else {
		var comp compression.Compressor
		if comp, err = compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default}); err == nil {
			err = comp.CompressStream(out, payload)
		}
	}
	if err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to write output file %s: %w", path, err)
	}

	var written int64
	if info, serr := out.Stat(); serr == nil {
		written = info.Size()
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("failed to close output file %s: %w", path, err)
	}
	return written, nil
}

func shutdownTracing(tracing *observability.Tracing, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
