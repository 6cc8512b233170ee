package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/graph/entity"
	"github.com/c360/traitstore/graph/request"
	"github.com/c360/traitstore/subscription"
)

// execute runs the command line in args and always releases whatever setup
// acquired
func execute(a *app, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	if terr := a.teardown(); terr != nil {
		a.logError("Shutdown failed", terr)
		if err == nil {
			err = terr
		}
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "traitctl talks to a trait store engine",
		Long: `traitctl creates, reads, queries and watches entities held by a trait
store engine reachable over NATS or WebSocket.

Configuration is read from --config (JSON, YAML or TOML), then
TRAITSTORE_ prefixed environment variables, then flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd.Context())
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ./traitstore.* or ~/.config/traitstore/traitstore.*)")
	flags.String("nats-url", "", "NATS server URLs, comma separated")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json, text")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	for key, flag := range map[string]string{
		"nats.urls":    "nats-url",
		"log.level":    "log-level",
		"log.format":   "log-format",
		"metrics.addr": "metrics-addr",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newVersionCmd(a),
		newCreateCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newQueryCmd(a),
		newWatchCmd(a),
		newRenameCmd(a),
		newDeleteCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			_, _ = fmt.Fprintf(a.out, "%s version %s (built %s)\n", appName, Version, BuildTime)
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "create <type> [json]",
		Short: "Create an entity with one trait",
		Long: `Create an entity carrying a single trait of the given type.

Example:
  traitctl create note '{"title":"Groceries","body":"milk"}'
  traitctl create task '{"title":"Ship it"}' --id release`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := codec.DecodePayload(args[0], optionalArg(args, 1))
			if err != nil {
				return err
			}

			b := a.client.NewMutation()
			if id != "" {
				b.CreateEntityWithID(id)
			} else {
				b.CreateEntity()
			}
			entityID := b.EntityID()

			res, err := a.client.Apply(cmd.Context(), b.PutTrait(payload).Build())
			if err != nil {
				return fmt.Errorf("create entity: %w", err)
			}
			return a.printJSON(mutationView{EntityID: entityID, OperationID: res.OperationID})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "entity id (default: generated)")
	return cmd
}

func newPutCmd(a *app) *cobra.Command {
	var traitID string
	cmd := &cobra.Command{
		Use:   "put <entity-id> <type> [json]",
		Short: "Add or replace a trait on an entity",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := codec.DecodePayload(args[1], optionalArg(args, 2))
			if err != nil {
				return err
			}

			b := a.client.NewMutation().UpdateEntity(args[0])
			if traitID != "" {
				b.PutTraitWithID(traitID, payload)
			} else {
				b.PutTrait(payload)
			}

			res, err := a.client.Apply(cmd.Context(), b.Build())
			if err != nil {
				return fmt.Errorf("put trait: %w", err)
			}
			return a.printJSON(mutationView{EntityID: args[0], OperationID: res.OperationID})
		},
	}
	cmd.Flags().StringVar(&traitID, "trait-id", "", "trait id to replace (default: generated)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity-id>",
		Short: "Print one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get entity: %w", err)
			}
			return a.printJSON(newModelView(model))
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the entities matching a query",
		Long: `Run a one-shot query. With no predicate flag every entity matches.

Example:
  traitctl query --trait task --order-by title --limit 10
  traitctl query --text milk`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.build(a.client.NewQuery())
			if err != nil {
				return err
			}
			models, err := a.client.Fetch(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			return a.printJSON(newModelViews(models))
		},
	}
	qf.register(cmd)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		qf      queryFlags
		updates int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream query results as they change",
		Long: `Watch a query and print one JSON line per update until the engine ends
the watch, --updates is reached, or the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.build(a.client.NewQuery())
			if err != nil {
				return err
			}
			return a.watch(cmd.Context(), q, updates)
		},
	}
	qf.register(cmd)
	cmd.Flags().IntVar(&updates, "updates", 0, "stop after this many updates (0: unlimited)")
	return cmd
}

func (a *app) watch(ctx context.Context, q request.EntityQuery, limit int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan watchView, 16)
	h, err := a.client.WatchModels(ctx, q, func(models []*entity.Model, ev subscription.WatchEvent) {
		select {
		case events <- newWatchView(models, ev):
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	// Cancel is a no-op once the watch reached Done or Error
	defer h.Cancel()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := a.printLine(ev); err != nil {
				return err
			}
			switch ev.State {
			case subscription.StateRunning.String():
				// An update that failed to decode is reported and skipped
				if ev.Error != "" {
					continue
				}
				seen++
				if limit > 0 && seen >= limit {
					return nil
				}
			case subscription.StateError.String():
				return stderrors.New(ev.Error)
			default:
				return nil
			}
		}
	}
}

func newRenameCmd(a *app) *cobra.Command {
	var traitID string
	cmd := &cobra.Command{
		Use:   "rename <entity-id> <name>",
		Short: "Rename an entity through its priority trait",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get entity: %w", err)
			}

			var inst *entity.Instance
			if traitID != "" {
				inst, err = model.Trait(traitID)
			} else {
				inst, err = model.PriorityTrait()
			}
			if err != nil {
				return err
			}

			res, err := inst.Rename(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("rename: %w", err)
			}
			return a.printJSON(mutationView{EntityID: args[0], OperationID: res.OperationID})
		},
	}
	cmd.Flags().StringVar(&traitID, "trait", "", "rename this trait instead of the priority trait")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var traitIDs []string
	cmd := &cobra.Command{
		Use:   "delete <entity-id>",
		Short: "Delete an entity, or some of its traits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.client.NewMutation().UpdateEntity(args[0])
			if len(traitIDs) == 0 {
				b.DeleteEntity()
			}
			for _, id := range traitIDs {
				b.DeleteTrait(id)
			}

			res, err := a.client.Apply(cmd.Context(), b.Build())
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			return a.printJSON(mutationView{EntityID: args[0], OperationID: res.OperationID})
		},
	}
	cmd.Flags().StringSliceVar(&traitIDs, "trait", nil, "delete only these trait ids")
	return cmd
}

func optionalArg(args []string, i int) []byte {
	if i < len(args) {
		return []byte(args[i])
	}
	return nil
}

// queryFlags maps command line flags onto a QueryBuilder
type queryFlags struct {
	ids            []string
	trait          string
	text           string
	limit          int
	orderBy        string
	byOperation    bool
	descending     bool
	project        []string
	includeDeleted bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.ids, "ids", nil, "match these entity ids")
	fs.StringVar(&f.trait, "trait", "", "match entities carrying this trait type")
	fs.StringVar(&f.text, "text", "", "full text match")
	fs.IntVar(&f.limit, "limit", 0, "maximum entities (0: no limit)")
	fs.StringVar(&f.orderBy, "order-by", "", "order by this field")
	fs.BoolVar(&f.byOperation, "order-by-operation", false, "order by last modifying operation")
	fs.BoolVar(&f.descending, "desc", false, "descending order")
	fs.StringSliceVar(&f.project, "project", nil, "only return these trait types")
	fs.BoolVar(&f.includeDeleted, "include-deleted", false, "include deleted entities")
	cmd.MarkFlagsMutuallyExclusive("ids", "trait", "text")
	cmd.MarkFlagsMutuallyExclusive("order-by", "order-by-operation")
}

func (f *queryFlags) build(b *request.QueryBuilder) (request.EntityQuery, error) {
	switch {
	case len(f.ids) > 0:
		b.WithIDs(f.ids...)
	case f.trait != "":
		b.WithTrait(f.trait)
	case f.text != "":
		b.Matching(f.text)
	default:
		b.All()
	}

	if f.limit < 0 {
		return request.EntityQuery{}, fmt.Errorf("--limit must not be negative")
	}
	if f.limit > 0 {
		b.Count(f.limit)
	}
	switch {
	case f.orderBy != "":
		b.OrderByField(f.orderBy, !f.descending)
	case f.byOperation:
		b.OrderByOperationIDs(!f.descending)
	}
	if len(f.project) > 0 {
		b.Project(f.project...)
	}
	if f.includeDeleted {
		b.IncludeDeleted()
	}
	return b.Build(), nil
}
