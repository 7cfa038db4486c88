package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/eval/template"
	"github.com/aescanero/dago-cel/internal/logging"
	"github.com/aescanero/dago-cel/internal/output"
	"github.com/aescanero/dago-cel/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// errReported means the failure has already been written to the output
var errReported = errors.New("failure already reported")

// options holds the flags shared by every command
type options struct {
	contextJSON string
	contextFile string
	exprFile    string
	output      string
	template    string
	mode        string
	logLevel    string
	timing      bool
	verbose     bool

	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{stdout: stdout, stderr: stderr, logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "cel [expression]",
		Short: "Evaluate CEL expressions",
		Long: `cel evaluates Common Expression Language expressions against a context
of variables.

In python mode (the default) integers are promoted to doubles when an
expression mixes them, so 1 + 2.5 evaluates to 3.5. In strict mode the
same expression fails with a type mismatch.

Examples:
  cel '1 + 2.5'
  cel -c '{"price": 2.5, "quantity": 4}' 'price * quantity'
  cel -f order.yaml -o json '{"total": price * quantity}'
  cel --file checks.txt -o json
  cel rules routing.yaml -c '{"score": 0.9}'`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := o.logLevel
			if o.verbose {
				level = "debug"
			}
			logger, err := logging.NewConsole(level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			o.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = o.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runEval(cmd.Context(), args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.contextJSON, "context", "c", "", "context variables as a JSON object")
	flags.StringVarP(&o.contextFile, "context-file", "f", "", "JSON or YAML file of context variables")
	flags.StringVarP(&o.output, "output", "o", string(output.FormatAuto), "output format: auto, json or pretty")
	flags.StringVar(&o.mode, "mode", string(cel.DefaultMode), "evaluation mode: python or strict")
	flags.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "print details and debug logs to stderr")

	cmd.Flags().StringVar(&o.exprFile, "file", "", "file of expressions, one per line")
	cmd.Flags().StringVar(&o.template, "template", "", "Handlebars template for the result")
	cmd.Flags().BoolVarP(&o.timing, "timing", "t", false, "print evaluation time to stderr")

	cmd.AddCommand(newRulesCmd(o))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func (o *options) evaluator() (*cel.Evaluator, error) {
	mode, err := cel.ParseMode(strings.ToLower(o.mode))
	if err != nil {
		return nil, err
	}
	return cel.NewEvaluator(cel.WithMode(mode), cel.WithLogger(o.logger))
}

func (o *options) runEval(ctx context.Context, args []string) error {
	format, err := output.ParseFormat(o.output)
	if err != nil {
		return err
	}
	evaluator, err := o.evaluator()
	if err != nil {
		return err
	}
	vars, err := o.variables()
	if err != nil {
		return err
	}
	w := output.NewWriter(o.stdout, format)

	if o.exprFile != "" {
		if len(args) > 0 {
			return errors.New("give either an expression or --file, not both")
		}
		exprs, err := readExpressions(o.exprFile)
		if err != nil {
			return err
		}
		batch := evaluateAll(ctx, evaluator, exprs, vars)
		if err := w.Batch(batch); err != nil {
			return err
		}
		for _, e := range batch {
			if e.Err != nil {
				return errReported
			}
		}
		return nil
	}

	if len(args) == 0 {
		return errors.New("no expression provided, use --help for usage information")
	}
	expr := args[0]

	if o.verbose {
		fmt.Fprintf(o.stderr, "Expression: %s\n", expr)
		fmt.Fprintf(o.stderr, "Context variables: %d\n", len(vars))
	}

	start := time.Now()
	result, evalErr := evaluator.Evaluate(ctx, expr, vars)
	elapsed := time.Since(start)

	if o.template != "" {
		return o.renderTemplate(template.Result{
			Expression: expr,
			Value:      result,
			Mode:       evaluator.Mode().String(),
			Duration:   elapsed,
			Err:        evalErr,
			ErrKind:    kindName(evalErr),
		})
	}
	if evalErr != nil {
		return evalErr
	}

	if o.verbose {
		fmt.Fprintf(o.stderr, "Result type: %s\n", output.TypeName(result))
	}
	if err := w.Result(result); err != nil {
		return err
	}
	if o.timing {
		fmt.Fprintf(o.stderr, "Evaluated in %.2fms\n", float64(elapsed.Microseconds())/1000)
	}
	return nil
}

func (o *options) renderTemplate(r template.Result) error {
	s, err := template.NewEngine().RenderResult(o.template, r)
	if err != nil {
		return err
	}
	fmt.Fprintln(o.stdout, s)
	if r.Err != nil {
		return errReported
	}
	return nil
}

func kindName(err error) string {
	if err == nil {
		return ""
	}
	if k := celerr.KindOf(err); k != 0 {
		return k.String()
	}
	return "Error"
}

// evaluateAll evaluates expressions concurrently. Entries keep input order.
func evaluateAll(ctx context.Context, evaluator *cel.Evaluator, exprs []string, vars map[string]interface{}) []output.Entry {
	batch := make([]output.Entry, len(exprs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, expr := range exprs {
		i, expr := i, expr
		g.Go(func() error {
			start := time.Now()
			result, err := evaluator.Evaluate(ctx, expr, vars)
			batch[i] = output.Entry{
				Expression: expr,
				Result:     result,
				Err:        err,
				Duration:   time.Since(start),
			}
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

// readExpressions reads one expression per line, skipping blank lines and
// lines starting with #
func readExpressions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open expression file: %w", err)
	}
	defer f.Close()

	var exprs []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exprs = append(exprs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expression file: %w", err)
	}
	return exprs, nil
}

// variables merges --context over --context-file
func (o *options) variables() (map[string]interface{}, error) {
	vars := map[string]interface{}{}

	if o.contextFile != "" {
		fileVars, err := loadVariables(o.contextFile)
		if err != nil {
			return nil, err
		}
		for name, v := range fileVars {
			vars[name] = v
		}
	}

	if o.contextJSON != "" {
		inline, err := store.Decode([]byte(o.contextJSON))
		if err != nil {
			return nil, fmt.Errorf("invalid JSON in --context: %w", err)
		}
		for name, v := range inline {
			vars[name] = v
		}
	}
	return vars, nil
}

// loadVariables reads a context file. Files ending in .json are decoded as
// JSON, anything else as YAML.
func loadVariables(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		vars, err := store.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
		return vars, nil
	}

	var vars map[string]interface{}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return vars, nil
}
