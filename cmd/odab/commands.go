package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/odab/internal/catalogue"
	"github.com/MrWong99/odab/internal/config"
	"github.com/MrWong99/odab/internal/extract"
	"github.com/MrWong99/odab/internal/mcp/thinkingserver"
	"github.com/MrWong99/odab/internal/reference"
	"github.com/MrWong99/odab/internal/solver"
	"github.com/MrWong99/odab/pkg/types"
)

// version is reported to MCP clients and in telemetry.
var version = "dev"

// maxImageBytes caps images read from disk.
const maxImageBytes = 20 << 20

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "odab",
		Short:         "Solve problems with a tool-using language model",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the YAML config (default ./"+defaultConfigPath+" if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(
		solveCmd(a),
		extractCmd(a),
		editCmd(a),
		verifyCmd(a),
		conceptsCmd(a),
		indexCmd(a),
		mcpCmd(a),
	)
	return root
}

type conceptJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type referenceJSON struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

type solutionJSON struct {
	RunID     string         `json:"run_id"`
	Depth     int            `json:"depth"`
	Question  string         `json:"question"`
	Steps     []string       `json:"steps"`
	Answer    string         `json:"answer"`
	Concepts  []conceptJSON  `json:"concepts"`
	Reference *referenceJSON `json:"reference,omitempty"`
}

func newSolutionJSON(s *solver.Solution) solutionJSON {
	out := solutionJSON{
		RunID:    s.RunID,
		Depth:    s.Depth,
		Question: s.ProblemText,
		Steps:    s.Steps,
		Answer:   s.Answer,
		Concepts: make([]conceptJSON, 0, len(s.Concepts)),
	}
	for _, c := range s.Concepts {
		out.Concepts = append(out.Concepts, conceptJSON{ID: c.ID, Name: c.Name})
	}
	if s.Reference != nil {
		out.Reference = &referenceJSON{ID: s.Reference.ID, Distance: s.Reference.Distance}
	}
	return out
}

func solveCmd(a *app) *cobra.Command {
	var text, image string
	var useReference bool
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a problem step by step",
		Long: `Solve runs the problem through the model with the sequentialThinking tool,
then asks for a JSON summary tagged with catalogue concepts.

With --reference the closest reference problem is looked up and its worked
solution added to the prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			req := solver.SolveRequest{Text: text}
			if image != "" {
				img, err := loadImage(image)
				if err != nil {
					return err
				}
				req.Image = img
			}
			if req.Text == "" && req.Image == nil {
				return errors.New("--text or --image is required")
			}

			s, err := a.newSolver(ctx, useReference)
			if err != nil {
				return err
			}
			a.serveAdmin()

			solve := s.Solve
			if useReference {
				solve = s.SolveWithReference
			}
			sol, err := solve(ctx, req)
			if err != nil {
				var me *extract.MalformedError
				if errors.As(err, &me) {
					a.log.Debug("unparseable summary", "raw", me.Raw)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), newSolutionJSON(sol))
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "problem text")
	cmd.Flags().StringVar(&image, "image", "", "path to an image of the problem")
	cmd.Flags().BoolVar(&useReference, "reference", false, "augment the prompt with the nearest reference problem")
	return cmd
}

func extractCmd(a *app) *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Transcribe the problem shown in an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := loadImage(image)
			if err != nil {
				return err
			}
			s, err := a.newSolver(cmd.Context(), false)
			if err != nil {
				return err
			}
			text, err := s.ExtractProblem(cmd.Context(), img)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "path to the image")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func editCmd(a *app) *cobra.Command {
	var problem, request string
	var showDiff bool
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Rewrite a problem according to a request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if problem == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read problem from stdin: %w", err)
				}
				problem = string(data)
			}
			s, err := a.newSolver(cmd.Context(), false)
			if err != nil {
				return err
			}
			ed, err := s.EditProblem(cmd.Context(), problem, request)
			if err != nil {
				return err
			}
			out := ed.Problem
			if showDiff {
				out = ed.Diff
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&problem, "problem", "", "problem text, or - to read stdin")
	cmd.Flags().StringVar(&request, "request", "", "how to change the problem")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "print a line diff instead of the new problem")
	_ = cmd.MarkFlagRequired("problem")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

type verdictJSON struct {
	Extracted      string `json:"extracted_answer"`
	FullMatch      bool   `json:"full_match"`
	MismatchReason string `json:"mismatch_reason,omitempty"`
	Correct        bool   `json:"correct"`
}

func verifyCmd(a *app) *cobra.Command {
	var image, question, answer string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Grade the answer written in an image against the expected answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := loadImage(image)
			if err != nil {
				return err
			}
			s, err := a.newSolver(cmd.Context(), false)
			if err != nil {
				return err
			}
			v, verr := s.VerifyAnswer(cmd.Context(), img, question, answer)
			if err := writeJSON(cmd.OutOrStdout(), verdictJSON{
				Extracted:      v.Extracted,
				FullMatch:      v.FullMatch,
				MismatchReason: v.MismatchReason,
				Correct:        v.Correct,
			}); err != nil {
				return err
			}
			return verr
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "path to the image of the written answer")
	cmd.Flags().StringVar(&question, "question", "", "problem text")
	cmd.Flags().StringVar(&answer, "answer", "", "expected answer")
	for _, f := range []string{"image", "question", "answer"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func conceptsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "concepts",
		Short: "Print the concept catalogue as offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.concepts(cmd.Context())
			if err != nil {
				return err
			}
			if src == nil {
				return errors.New("no catalogue configured")
			}
			cs, err := src.Concepts(cmd.Context())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), catalogue.Render(cs))
			return err
		},
	}
}

func indexCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed reference problems and store them for --reference lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			problems, err := reference.LoadFile(file)
			if err != nil {
				return err
			}
			r, err := a.retriever(cmd.Context())
			if err != nil {
				return err
			}
			n, err := r.IndexAll(cmd.Context(), problems)
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d problems\n", n, len(problems))
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file with a top-level problems list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the sequentialThinking tool to MCP clients over stdio",
		Long: `mcp speaks the Model Context Protocol on stdin/stdout. Each client session
gets its own thought history. Logs go to stderr.

When started with --config the file is watched and log level changes apply
without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reg, err := a.toolRegistry()
			if err != nil {
				return err
			}
			if a.configPath != "" {
				w, err := config.NewWatcher(ctx, a.configPath, func(d config.ConfigDiff, _ *config.Config) {
					if d.LogLevelChanged && a.logLevel == "" {
						a.level.Set(slogLevel(d.NewLogLevel))
					}
				})
				if err != nil {
					return err
				}
				a.onClose(w.Stop)
			}
			a.serveAdmin()

			srv := thinkingserver.New(reg, thinkingserver.Config{
				Name:    a.cfg.MCP.Name,
				Version: firstNonEmpty(a.cfg.MCP.Version, version),
				Metrics: a.metrics,
			})
			a.log.Info("mcp server starting", "transport", "stdio")
			if err := srv.RunStdio(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// loadImage reads an image file and base64-encodes it. The media type is
// sniffed from the content.
func loadImage(path string) (*types.ImageBlock, error) {
	if path == "" {
		return nil, errors.New("--image is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%s exceeds %d MiB", path, maxImageBytes>>20)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%s is %s, not an image", path, mime)
	}
	return &types.ImageBlock{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(data)}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
