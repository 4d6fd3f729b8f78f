package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	syncProviders []string
	syncFull      bool
	syncTargets   []string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a sync for a workspace",
	Long: `Trigger a sync for a workspace.

Examples:
  hivemind sync --workspace ws-1
  hivemind sync --workspace ws-1 --provider github --full
  hivemind sync status --workspace ws-1
  hivemind sync cancel --workspace ws-1 --provider slack`,
	RunE: runSyncTrigger,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-provider sync state for a workspace",
	RunE:  runSyncStatus,
}

var syncCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel waiting sync jobs for a workspace",
	RunE:  runSyncCancel,
}

func init() {
	syncCmd.Flags().StringSliceVar(&syncProviders, "provider", nil, "Restrict to specific providers (github, slack, notion)")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Run a full sync instead of incremental")
	syncCmd.Flags().StringSliceVar(&syncTargets, "target", nil, "Restrict to specific repos/channels/pages")
	syncCancelCmd.Flags().StringSliceVar(&syncProviders, "provider", nil, "Restrict cancellation to one provider")

	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncCancelCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSyncTrigger(cmd *cobra.Command, args []string) error {
	syncType := "incremental"
	if syncFull {
		syncType = "full"
	}

	var out struct {
		JobIDs map[string]string `json:"jobIds"`
	}
	err := apiCall(http.MethodPost, "/api/sync", map[string]any{
		"providers": syncProviders,
		"type":      syncType,
		"targets":   syncTargets,
	}, &out)
	if err != nil {
		return err
	}

	for provider, jobID := range out.JobIDs {
		fmt.Printf("%s: enqueued %s\n", provider, jobID)
	}
	return nil
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	var out struct {
		IsRunning bool `json:"isRunning"`
		Jobs      []struct {
			Provider string `json:"provider"`
			JobID    string `json:"jobId"`
			State    string `json:"state"`
			Progress struct {
				Phase     string `json:"phase"`
				Processed int    `json:"processed"`
				Failed    int    `json:"failed"`
				Total     int    `json:"total"`
			} `json:"progress"`
			Error string `json:"error"`
		} `json:"jobs"`
	}
	if err := apiCall(http.MethodGet, "/api/sync/status", nil, &out); err != nil {
		return err
	}

	if len(out.Jobs) == 0 {
		fmt.Println("no recent sync activity")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATE\tPHASE\tPROCESSED\tFAILED\tTOTAL\tERROR")
	for _, job := range out.Jobs {
		total := "-"
		if job.Progress.Total > 0 {
			total = strconv.Itoa(job.Progress.Total)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			job.Provider, job.State, job.Progress.Phase,
			job.Progress.Processed, job.Progress.Failed, total, job.Error)
	}
	return w.Flush()
}

func runSyncCancel(cmd *cobra.Command, args []string) error {
	path := "/api/sync"
	if len(syncProviders) > 0 {
		path += "?provider=" + url.QueryEscape(syncProviders[0])
	}

	var out struct {
		Cancelled int `json:"cancelled"`
	}
	if err := apiCall(http.MethodDelete, path, nil, &out); err != nil {
		return err
	}
	fmt.Printf("cancelled %d waiting job(s)\n", out.Cancelled)
	return nil
}
