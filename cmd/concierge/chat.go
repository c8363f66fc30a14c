package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conciergeai/concierge/core"
	"github.com/conciergeai/concierge/engine"
	"github.com/conciergeai/concierge/logging"
	"github.com/conciergeai/concierge/memory"
	"github.com/conciergeai/concierge/model"
	"github.com/conciergeai/concierge/model/anthropic"
	"github.com/conciergeai/concierge/model/openai"
	"github.com/conciergeai/concierge/state"
	"github.com/conciergeai/concierge/tool"
)

func chatCmd(configPath *string) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat on a durable thread",
		Long: `Chat runs a read-eval loop against the engine. Sensitive actions
(such as sending mail) print a draft and wait for your reply: anything
affirmative approves, anything else is treated as change feedback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return runChat(cfg, threadID)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "default", "thread id; reuse to continue a conversation")
	return cmd
}

func runChat(cfg Config, threadID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("concierge %s | provider=%s thread=%s\n", version, cfg.Provider, threadID)
	fmt.Println("Type a message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		events, err := eng.ProcessTurn(ctx, threadID, line)
		if errors.Is(err, engine.ErrAwaitingReview) {
			// Thread is parked at a review checkpoint (possibly from a
			// previous process); the input is the human's review reply.
			events, err = eng.Resume(ctx, threadID, line)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		drain(events)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func drain(events <-chan core.StreamEvent) {
	for ev := range events {
		switch ev.Type {
		case core.EventToken:
			if ev.Text != "" {
				fmt.Printf("  [%s] %s\n", ev.Agent, ev.Text)
			}
		case core.EventToolCall:
			fmt.Printf("  [%s] -> %s\n", ev.Agent, ev.Tool)
		case core.EventInterrupt:
			printInterrupt(ev.Payload)
		case core.EventDone:
			if ev.Text != "" {
				fmt.Printf("\n%s\n", ev.Text)
			}
		case core.EventError:
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Err)
		}
	}
}

func printInterrupt(payload string) {
	var p struct {
		Type    string `json:"type"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		fmt.Println(payload)
		return
	}
	fmt.Printf("\n%s\n", p.Payload)
	fmt.Println("Reply to approve or request changes.")
}

func buildEngine(cfg Config) (*engine.Engine, error) {
	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}

	states, err := state.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}

	logger := logging.NewSlogLogger(parseLogLevel(cfg.Log.Level), cfg.Log.Format, false)

	eng := engine.New(states, memory.NewInMemoryStore(), completer,
		engine.WithLogger(logger),
	)

	workers := []*engine.Worker{
		{
			Kind:        core.WorkerMail,
			Completer:   completer,
			Tools:       mailTools(cfg.DataDir),
			Instruction: "You are a mail assistant. Draft clear, concise email on the user's behalf and send it with send_email.",
		},
		{
			Kind:        core.WorkerContacts,
			Completer:   completer,
			Tools:       contactTools(cfg.DataDir),
			Instruction: "You are a contacts assistant. Look up contact details with lookup_contact and report what you find.",
		},
	}
	for _, w := range workers {
		if err := eng.RegisterWorker(w); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func buildCompleter(cfg Config) (model.Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// mailTools writes outgoing mail to an outbox directory instead of a real
// provider. send_email is sensitive and goes through human review.
func mailTools(dataDir string) *tool.Toolset {
	outbox := filepath.Join(dataDir, "outbox")

	send := tool.NewFunctionTool(
		"send_email",
		"Send an email to a recipient.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "description": "Recipient address"},
				"subject": map[string]any{"type": "string", "description": "Subject line"},
				"body":    map[string]any{"type": "string", "description": "Message body"},
			},
			"required": []string{"to", "body"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			if err := os.MkdirAll(outbox, 0o755); err != nil {
				return nil, err
			}
			name := fmt.Sprintf("%d.yaml", time.Now().UnixNano())
			data, err := yaml.Marshal(args)
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(outbox, name), data, 0o644); err != nil {
				return nil, err
			}
			return fmt.Sprintf("email to %v queued in outbox", args["to"]), nil
		},
	)

	return tool.NewToolset([]tool.Tool{send}, tool.WithSensitive("send_email"))
}

// contactTools reads a contacts.yaml address book from the data directory.
func contactTools(dataDir string) *tool.Toolset {
	path := filepath.Join(dataDir, "contacts.yaml")

	lookup := tool.NewFunctionTool(
		"lookup_contact",
		"Look up a contact's email address by name.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string", "description": "Contact name to search for"},
			},
			"required": []string{"name"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("no address book at %s: %w", path, err)
			}
			var book map[string]string
			if err := yaml.Unmarshal(data, &book); err != nil {
				return nil, fmt.Errorf("parse address book: %w", err)
			}
			query := strings.ToLower(fmt.Sprint(args["name"]))
			for name, email := range book {
				if strings.Contains(strings.ToLower(name), query) {
					return fmt.Sprintf("%s <%s>", name, email), nil
				}
			}
			return fmt.Sprintf("no contact matching %q", args["name"]), nil
		},
	)

	return tool.NewToolset([]tool.Tool{lookup})
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
