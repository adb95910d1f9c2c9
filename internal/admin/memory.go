package admin

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prona-platform/prona/internal/embedding"
	"github.com/prona-platform/prona/internal/memory"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect per-user retrieval memory",
	}
	cmd.PersistentFlags().String("user", "", "User id (required)")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show index size and dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserFlag(cmd)
			if err != nil {
				return err
			}
			svc, closeFn, err := a.openMemory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := svc.Stats(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	})

	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a similarity search over the user's memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserFlag(cmd)
			if err != nil {
				return err
			}
			k, _ := cmd.Flags().GetInt("k")

			svc, closeFn, err := a.openMemory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := svc.Search(cmd.Context(), userID, strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	search.Flags().IntP("k", "k", 5, "Number of neighbours")
	cmd.AddCommand(search)

	return cmd
}

func parseUserFlag(cmd *cobra.Command) (uuid.UUID, error) {
	s, _ := cmd.Flags().GetString("user")
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--user must be a UUID: %w", err)
	}
	return id, nil
}

// openMemory builds a memory service on the configured backend. The pool is
// only opened for the postgres backend.
func (a *app) openMemory(cmd *cobra.Command) (*memory.Service, func(), error) {
	closeFn := func() {}
	cfg := a.cfg.Memory

	var storage memory.Storage
	var err error
	if cfg.Backend == memory.BackendPostgres {
		pool, perr := a.openPool(cmd.Context())
		if perr != nil {
			return nil, nil, perr
		}
		closeFn = pool.Close
		storage, err = memory.OpenStorage(cfg.Backend, cfg.IndexDir, pool)
	} else {
		storage, err = memory.OpenStorage(cfg.Backend, cfg.IndexDir, nil)
	}
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	e := a.cfg.Embedding
	embedder := embedding.NewOpenAIEmbedder(e.BaseURL, e.APIKey, e.Model, e.Dims, e.Timeout)
	return memory.NewService(memory.NewRegistry(storage), embedder), closeFn, nil
}
