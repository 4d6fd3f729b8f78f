package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	searchSources []string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the workspace's synced content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the workspace's synced content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchSources, "source", nil, "Restrict to source types (e.g. github_issue, slack_thread)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	var out struct {
		Results []struct {
			SourceType string  `json:"source_type"`
			Title      string  `json:"title"`
			Score      float64 `json:"score"`
			Origin     string  `json:"origin"`
			URL        string  `json:"url"`
		} `json:"results"`
	}
	err := apiCall(http.MethodPost, "/api/search", map[string]any{
		"query":   strings.Join(args, " "),
		"sources": searchSources,
		"limit":   searchLimit,
	}, &out)
	if err != nil {
		return err
	}

	if len(out.Results) == 0 {
		fmt.Println("no results")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSOURCE\tTITLE\tURL")
	for _, r := range out.Results {
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n", r.Score, r.SourceType, r.Title, r.URL)
	}
	return w.Flush()
}

func runAsk(cmd *cobra.Command, args []string) error {
	var out struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"sources"`
	}
	err := apiCall(http.MethodPost, "/api/ask", map[string]any{
		"question": strings.Join(args, " "),
	}, &out)
	if err != nil {
		return err
	}

	fmt.Println(out.Answer)
	if len(out.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range out.Sources {
			if src.URL != "" {
				fmt.Printf("  - %s (%s)\n", src.Title, src.URL)
			} else {
				fmt.Printf("  - %s\n", src.Title)
			}
		}
	}
	return nil
}
