package cmd

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/source"
)

var flagPoolsBy string

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Cost pool tooling",
}

var poolsSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Print scenario records that pool every unpooled unit",
	Long:  "Groups unpooled units by service and legal entity (--by service-le) or by legal entity alone (--by le) and prints the pools and assignments as scenario TOML.",
	RunE:  runPoolsSuggest,
}

func init() {
	poolsSuggestCmd.Flags().StringVar(&flagPoolsBy, "by", string(review.ByServiceAndLE), "Grouping: service-le or le")
	poolsCmd.AddCommand(poolsSuggestCmd)
	rootCmd.AddCommand(poolsCmd)
}

func runPoolsSuggest(cmd *cobra.Command, _ []string) error {
	mode := review.PoolMode(flagPoolsBy)
	if mode != review.ByServiceAndLE && mode != review.ByLE {
		return errors.Errorf("unknown grouping %q, want %s or %s", flagPoolsBy, review.ByServiceAndLE, review.ByLE)
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	suggestions := review.SuggestPools(sess.ws.State(), mode)
	if len(suggestions) == 0 {
		fmt.Fprintln(os.Stderr, "  Every unit is already pooled.")
		return nil
	}
	return source.Encode(os.Stdout, suggestionRecords(suggestions))
}

// suggestionRecords declares the new pools and assigns every unit.
func suggestionRecords(suggestions []review.PoolSuggestion) source.Scenario {
	var sc source.Scenario
	for _, sg := range suggestions {
		if !sg.Existing {
			sc.Pools = append(sc.Pools, source.PoolRecord{
				ID:       sg.Pool.ID,
				Name:     sg.Pool.Name,
				Service:  sg.Pool.ServiceID,
				SourceLE: sg.Pool.SourceLE,
			})
		}
		for _, u := range sg.Units {
			sc.Assignments = append(sc.Assignments, source.AssignmentRecord{Unit: u, Group: sg.Pool.ID, Stage: "pool"})
		}
	}
	return sc
}
