// Command console is an operator CLI for a running world server. It wraps
// the /admin endpoints: status, survival round control, revive, phase
// override and bans. The admin token comes from --token, ARENA_ADMIN_TOKEN,
// or an interactive prompt when stdin is a terminal.
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	serverURL  string
	adminToken string
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Operator console for a world server",
	Long: `console talks to the admin surface of a running world server.

The server must be started with admin_token set in its config; every
subcommand sends that token in the X-Admin-Token header.`,
	SilenceUsage: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show room, tick, queue and store counters",
	RunE:  runStatus,
}

var survivalCmd = &cobra.Command{
	Use:   "survival",
	Short: "Control survival rounds",
}

var (
	survivalDuration time.Duration
	survivalPrize    float64
)

var survivalStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a survival round",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postSurvival("/admin/survival/start", map[string]any{
			"durationMs":   survivalDuration.Milliseconds(),
			"prizePoolUsd": survivalPrize,
		})
	},
}

var survivalEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Settle the current survival round now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postSurvival("/admin/survival/end", map[string]any{})
	},
}

var survivalResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear survival state back to waiting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postSurvival("/admin/survival/reset", map[string]any{})
	},
}

var reviveCmd = &cobra.Command{
	Use:   "revive <agentId>",
	Short: "Bring a dead agent back with reset combat stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply struct {
			OK      bool `json:"ok"`
			Revived bool `json:"revived"`
		}
		if err := adminPost("/admin/revive", map[string]any{"agentId": args[0]}, &reply); err != nil {
			return err
		}
		if !reply.Revived {
			fmt.Printf("%s was not dead, nothing to revive\n", args[0])
			return nil
		}
		fmt.Printf("%s revived\n", args[0])
		return nil
	},
}

var phaseCmd = &cobra.Command{
	Use:   "phase <lobby|battle|showdown>",
	Short: "Force the room into a phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply struct {
			OK    bool       `json:"ok"`
			Phase phaseState `json:"phase"`
		}
		if err := adminPost("/admin/phase", map[string]any{"phase": args[0]}, &reply); err != nil {
			return err
		}
		fmt.Printf("phase %s, round %d, zone %.0f, ends %s\n",
			reply.Phase.Phase, reply.Phase.RoundNumber, reply.Phase.SafeZoneRadius,
			msUntil(reply.Phase.EndsAt))
		return nil
	},
}

var banUnban bool

var banCmd = &cobra.Command{
	Use:   "ban <agentId>",
	Short: "Ban an agent (or lift a ban with --unban)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply struct {
			OK bool `json:"ok"`
		}
		body := map[string]any{"agentId": args[0], "banned": !banUnban}
		if err := adminPost("/admin/ban", body, &reply); err != nil {
			return err
		}
		if banUnban {
			fmt.Printf("%s unbanned\n", args[0])
		} else {
			fmt.Printf("%s banned\n", args[0])
		}
		return nil
	},
}

func init() {
	def := os.Getenv("ARENA_SERVER")
	if def == "" {
		def = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", def, "world server base URL")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", os.Getenv("ARENA_ADMIN_TOKEN"), "admin token (default $ARENA_ADMIN_TOKEN)")

	survivalStartCmd.Flags().DurationVar(&survivalDuration, "duration", 0, "round length (e.g. 72h); 0 uses the server default")
	survivalStartCmd.Flags().Float64Var(&survivalPrize, "prize", 0, "prize pool in USD")
	survivalCmd.AddCommand(survivalStartCmd, survivalEndCmd, survivalResetCmd)

	banCmd.Flags().BoolVar(&banUnban, "unban", false, "lift the ban instead")

	rootCmd.AddCommand(statusCmd, survivalCmd, reviveCmd, phaseCmd, banCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Local views of the admin JSON. The console keeps its own structs so it
// builds standalone against any server version that speaks the same wire.

type phaseState struct {
	Phase          string  `json:"phase"`
	SafeZoneRadius float64 `json:"safeZoneRadius"`
	EndsAt         int64   `json:"endsAt"`
	RoundNumber    int     `json:"roundNumber"`
}

type survivalState struct {
	Status          string   `json:"status"`
	PrizePoolUsd    float64  `json:"prizePoolUsd"`
	WinnerAgentIDs  []string `json:"winnerAgentIds"`
	RefusalAgentIDs []string `json:"refusalAgentIds"`
	RoundEndsAt     int64    `json:"roundEndsAt"`
	Summary         string   `json:"summary"`
}

type statusView struct {
	Room struct {
		RoomID     string `json:"roomId"`
		Name       string `json:"name"`
		AgentCount int    `json:"agentCount"`
		Capacity   int    `json:"capacity"`
	} `json:"room"`
	Tick           int64         `json:"tick"`
	UptimeMs       int64         `json:"uptimeMs"`
	Profiles       int           `json:"profiles"`
	QueueDepth     int           `json:"queueDepth"`
	QueueDropped   uint64        `json:"queueDropped"`
	Observers      int           `json:"observers"`
	Battles        int           `json:"battles"`
	Alliances      int           `json:"alliances"`
	Banned         int           `json:"banned"`
	Phase          phaseState    `json:"phase"`
	Survival       survivalState `json:"survival"`
	RelayDropped   uint64        `json:"relayDropped"`
	StoreEvents    int64         `json:"storeEvents"`
	StoreChainHead string        `json:"storeChainHead"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	var st statusView
	if err := adminGet("/admin/status", &st); err != nil {
		return err
	}

	uptime := (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second)
	fmt.Printf("%s (%s)  up %s  tick %s\n", st.Room.Name, st.Room.RoomID, uptime, humanize.Comma(st.Tick))
	fmt.Printf("agents    %d/%d alive, %s profiles, %d banned\n",
		st.Room.AgentCount, st.Room.Capacity, humanize.Comma(int64(st.Profiles)), st.Banned)
	fmt.Printf("phase     %s, round %d, zone %.0f, ends %s\n",
		st.Phase.Phase, st.Phase.RoundNumber, st.Phase.SafeZoneRadius, msUntil(st.Phase.EndsAt))
	fmt.Printf("survival  %s", st.Survival.Status)
	if st.Survival.PrizePoolUsd > 0 {
		fmt.Printf(", pool $%s", humanize.CommafWithDigits(st.Survival.PrizePoolUsd, 2))
	}
	if len(st.Survival.WinnerAgentIDs) > 0 {
		fmt.Printf(", winners %s", strings.Join(st.Survival.WinnerAgentIDs, ", "))
	}
	if st.Survival.RoundEndsAt > 0 {
		fmt.Printf(", ends %s", msUntil(st.Survival.RoundEndsAt))
	}
	fmt.Println()
	fmt.Printf("battles   %d active, %d alliances\n", st.Battles, st.Alliances)
	fmt.Printf("queue     %d deep, %s dropped\n", st.QueueDepth, humanize.Comma(int64(st.QueueDropped)))
	fmt.Printf("observers %d connected, %s relay drops\n", st.Observers, humanize.Comma(int64(st.RelayDropped)))
	if st.StoreEvents > 0 || st.StoreChainHead != "" {
		head := st.StoreChainHead
		if len(head) > 12 {
			head = head[:12]
		}
		fmt.Printf("store     %s events, head %s\n", humanize.Comma(st.StoreEvents), head)
	}
	return nil
}

func postSurvival(path string, body map[string]any) error {
	var reply struct {
		OK       bool          `json:"ok"`
		Survival survivalState `json:"survival"`
	}
	if err := adminPost(path, body, &reply); err != nil {
		return err
	}
	sv := reply.Survival
	fmt.Printf("survival %s", sv.Status)
	if sv.PrizePoolUsd > 0 {
		fmt.Printf(", pool $%s", humanize.CommafWithDigits(sv.PrizePoolUsd, 2))
	}
	if len(sv.WinnerAgentIDs) > 0 {
		fmt.Printf(", winners %s", strings.Join(sv.WinnerAgentIDs, ", "))
	}
	if sv.Summary != "" {
		fmt.Printf("\n%s", sv.Summary)
	}
	fmt.Println()
	return nil
}

func msUntil(atMs int64) string {
	if atMs == 0 {
		return "never"
	}
	d := time.Until(time.UnixMilli(atMs)).Round(time.Second)
	if d < 0 {
		return fmt.Sprintf("%s ago", -d)
	}
	return fmt.Sprintf("in %s", d)
}

// --- HTTP plumbing ---

var httpClient = &http.Client{Timeout: 10 * time.Second}

func token() (string, error) {
	if adminToken != "" {
		return adminToken, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no admin token: set --token or ARENA_ADMIN_TOKEN")
	}
	fmt.Fprint(os.Stderr, "admin token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	adminToken = strings.TrimSpace(string(raw))
	if adminToken == "" {
		return "", fmt.Errorf("empty admin token")
	}
	return adminToken, nil
}

func adminGet(path string, out any) error {
	return adminDo(http.MethodGet, path, nil, out)
}

func adminPost(path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return adminDo(http.MethodPost, path, bytes.NewReader(raw), out)
}

func adminDo(method, path string, body io.Reader, out any) error {
	tok, err := token()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Admin-Token", tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
