package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/thinkwright/tastebuddy-chat/internal/app"
	"github.com/thinkwright/tastebuddy-chat/internal/config"
	"github.com/thinkwright/tastebuddy-chat/internal/identity"
	"github.com/thinkwright/tastebuddy-chat/internal/poller"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
	"golang.org/x/term"
)

func init() {
	watchCmd.Flags().Bool("join", false, "Announce yourself before watching")
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the conversation as it happens, without the TUI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &printer{width: outputWidth()}
		s, err := openSession(cmd, app.WithSyncHandler(p.synced))
		if err != nil {
			return err
		}
		defer s.Close()
		p.transcript = s.app.Transcript()

		if join, _ := cmd.Flags().GetBool("join"); join {
			s.app.Join(cmd.Context())
		}

		loop := s.app.Loop()
		loop.Start(cmd.Context())
		<-cmd.Context().Done()
		loop.Stop()
		p.flush()
		return nil
	},
}

// printer writes transcript elements to stdout as they appear.
type printer struct {
	mu         sync.Mutex
	transcript *render.Transcript
	width      int
	printed    int
}

func (p *printer) synced(res poller.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Reset {
		fmt.Println("── the shared conversation was reset ──")
		p.printed = 0
	}
	p.flushLocked()
}

func (p *printer) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
}

func (p *printer) flushLocked() {
	if p.transcript == nil {
		return
	}
	els := p.transcript.Elements()
	for _, el := range els[min(p.printed, len(els)):] {
		fmt.Println(el.Render(p.width))
		fmt.Println()
	}
	p.printed = len(els)
}

func outputWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

var sayCmd = &cobra.Command{
	Use:   "say <text...>",
	Short: "Send one message to the group and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.app.Submit(cmd.Context(), strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Printf("sent as %s\n", s.app.DisplayName())
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the shared conversation memory on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.app.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(app.ResetNotice)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save the latest recommendations as a PDF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.app.Loop().Tick(cmd.Context()); err != nil {
			return err
		}
		path, err := s.app.Export(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("exported %s\n", path)
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Forget this machine's participant id and name colors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := identity.Open(identity.DBPath())
		if err != nil {
			return err
		}
		defer ids.Close()
		names, err := ids.Names()
		if err != nil {
			return err
		}
		if err := ids.Forget(); err != nil {
			return err
		}
		fmt.Printf("forgot local identity and %d name colors\n", len(names))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(loadConfig(cmd), "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s\n", config.Path(), data)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one config value",
	Long:  "Set one config value. Known keys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadFile()
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}
