package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/summit/internal/catalog"
	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/progress"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run the kiosk in the terminal",
	RunE:  runChat,
}

var (
	flagName     string
	flagAudioDir string
	flagVideo    bool
	flagLive     bool
	flagNoStream bool
)

func init() {
	rootCmd.AddCommand(chatCmd)
	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().StringVarP(&flagName, "name", "n", "", "Visitor name (prompted when empty)")
		c.Flags().StringVarP(&flagAudioDir, "audio-dir", "a", "", "Save each spoken reply into this directory")
		c.Flags().BoolVar(&flagVideo, "video", false, "Request a lip-synced video for each reply")
		c.Flags().BoolVar(&flagLive, "live", false, "Voice replies with the realtime voice model")
		c.Flags().BoolVar(&flagNoStream, "no-stream", false, "Print each reply only once it is complete")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	rt, err := kiosk.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rt.Service.Registry.Len() == 0 {
		return fmt.Errorf("no leader files found in %s", cfg.LeadersDir)
	}

	c := &chatSession{
		svc:      rt.Service,
		in:       bufio.NewScanner(os.Stdin),
		out:      os.Stdout,
		render:   progress.NewRenderer(os.Stdout),
		pick:     pickLeader,
		audioDir: flagAudioDir,
		opts:     kiosk.AskOptions{Video: flagVideo, Live: flagLive},
		stream:   !flagNoStream,
	}
	return c.run(ctx, flagName)
}

// chatSession is the line-oriented terminal kiosk.
type chatSession struct {
	svc      *kiosk.Service
	in       *bufio.Scanner
	out      io.Writer
	render   *progress.Renderer
	pick     func(title string, leaders []*persona.Persona, current string) (string, error)
	audioDir string
	opts     kiosk.AskOptions
	stream   bool

	sid     string
	leader  *persona.Persona
	replies int
}

const chatHelp = `Commands:
  /back              choose another leader (XP and badges are kept)
  /progress          show your XP panel
  /questions [topic] suggested questions (general, strategy, people, growth)
  /scenarios         scenario prompts
  /avatar <photo>    create your avatar from a photo
  /quit              end the visit`

func (c *chatSession) println(a ...any)               { fmt.Fprintln(c.out, a...) }
func (c *chatSession) printf(format string, a ...any) { fmt.Fprintf(c.out, format, a...) }

func (c *chatSession) readLine(prompt string) (string, bool) {
	c.printf("%s", prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *chatSession) run(ctx context.Context, name string) error {
	if name == "" {
		name, _ = c.readLine("Your name: ")
		if name == "" {
			name = "Guest"
		}
	}
	snap := c.svc.Start(name)
	c.sid = snap.ID
	c.printf("Welcome, %s!\n\n", snap.VisitorName)

	if err := c.choose(); err != nil {
		return c.finish(ctx, err)
	}
	c.println(chatHelp)

	for {
		line, ok := c.readLine("\nYou: ")
		if !ok {
			return c.finish(ctx, nil)
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if quit || err != nil {
				return c.finish(ctx, err)
			}
			continue
		}
		if err := c.ask(ctx, line); err != nil {
			return c.finish(ctx, err)
		}
	}
}

func (c *chatSession) choose() error {
	current := ""
	if c.leader != nil {
		current = c.leader.ID
	}
	id, err := c.pick("Choose a leader", c.svc.Leaders(), current)
	if err != nil {
		return err
	}
	if _, err := c.svc.SelectLeader(c.sid, id); err != nil {
		return err
	}
	c.leader, _ = c.svc.Registry.Get(id)
	c.printf("\n%s %s, %s\n", c.leader.Emoji, c.leader.Name, c.leader.Role)
	return nil
}

// command handles a slash command and reports whether the visit is over.
func (c *chatSession) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/back":
		if _, err := c.svc.Back(c.sid); err != nil {
			return false, err
		}
		if err := c.choose(); err != nil {
			if errors.Is(err, errPickerCancelled) {
				return true, nil
			}
			return false, err
		}
	case "/progress":
		view, err := c.svc.Progress(c.sid)
		if err != nil {
			return false, err
		}
		c.println(c.render.Panel(view))
	case "/questions":
		topic := ""
		if len(fields) > 1 {
			topic = fields[1]
		}
		for i, q := range catalog.Suggested(topic) {
			c.printf("  %d. %s\n", i+1, q)
		}
	case "/scenarios":
		for _, cat := range catalog.Scenarios() {
			c.printf("%s %s\n", cat.Icon, cat.Category)
			for _, s := range cat.Items {
				c.printf("  - %s\n", s.Title)
			}
		}
	case "/avatar":
		if len(fields) < 2 {
			c.println("usage: /avatar <photo>")
			return false, nil
		}
		photo, err := os.ReadFile(fields[1])
		if err != nil {
			c.printf("could not read photo: %v\n", err)
			return false, nil
		}
		ref, method, err := c.svc.SetAvatar(ctx, c.sid, photo)
		if err != nil {
			c.printf("avatar failed: %v\n", err)
			return false, nil
		}
		c.printf("Avatar saved to %s (%s)\n", ref, method)
	default:
		c.println(chatHelp)
	}
	return false, nil
}

func (c *chatSession) ask(ctx context.Context, question string) error {
	opts := c.opts
	streamed := false
	if c.stream {
		opts.OnChunk = func(chunk string) {
			if !streamed {
				c.printf("\n%s", c.render.StreamHeader(c.leader.Name))
				streamed = true
			}
			c.printf("%s", chunk)
		}
	}

	start := time.Now()
	res, err := c.svc.Ask(ctx, c.sid, question, opts)
	if streamed && (err != nil || res.Degraded) {
		c.println()
	}
	if err != nil {
		if errors.Is(err, kiosk.ErrEmptyMessage) {
			return nil
		}
		return err
	}
	if streamed && !res.Degraded {
		c.printf("%s", c.render.StreamEnd(res, time.Since(start)))
	} else {
		c.printf("\n%s", c.render.Reply(c.leader.Name, res, time.Since(start)))
	}

	if res.Speech != nil && c.audioDir != "" {
		c.replies++
		path, err := c.saveAudio(res.Speech.Data, res.Speech.MIME)
		if err != nil {
			c.printf("could not save audio: %v\n", err)
		} else {
			c.printf("Audio (%s): %s\n", res.Speech.Tier, path)
		}
	}
	if res.VideoURL != "" {
		c.printf("Video: %s\n", res.VideoURL)
	}
	return nil
}

func (c *chatSession) saveAudio(data []byte, mime string) (string, error) {
	if err := os.MkdirAll(c.audioDir, 0o755); err != nil {
		return "", err
	}
	ext := ".mp3"
	if mime == "audio/wav" {
		ext = ".wav"
	}
	path := filepath.Join(c.audioDir, fmt.Sprintf("%s-%03d%s", c.leader.ID, c.replies, ext))
	return path, os.WriteFile(path, data, 0o644)
}

// finish ends the session and prints the final panel. A cancelled picker is
// a normal way to leave.
func (c *chatSession) finish(ctx context.Context, cause error) error {
	snap, err := c.svc.End(ctx, c.sid)
	if err == nil {
		c.printf("\nThanks for visiting, %s!\n%s\n", snap.VisitorName, c.render.Panel(c.svc.SnapshotProgress(snap)))
	}
	if errors.Is(cause, errPickerCancelled) {
		return nil
	}
	return cause
}
