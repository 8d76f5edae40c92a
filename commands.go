package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tabletop/internal/config"
	"tabletop/internal/dice"
	"tabletop/internal/gamesystem"
	"tabletop/internal/security"
	"tabletop/internal/tool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			app.cfg.HTTP.Addr = addr
		}
		srv, err := app.buildServer(ctx)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx)
	},
}

var rollCmd = &cobra.Command{
	Use:   "roll <notation>",
	Short: "Roll dice the way the narrator's roll-dice tool does",
	Example: `  tabletop roll 1d20+5 --reason "Perception check"
  tabletop roll 4d6 --system ADD2E --seed 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetString("system")
		reason, _ := cmd.Flags().GetString("reason")
		seed, _ := cmd.Flags().GetInt64("seed")

		roller := dice.NewRoller(seed)
		if !cmd.Flags().Changed("seed") {
			var err error
			if roller, err = dice.NewRandomRoller(); err != nil {
				return err
			}
		}

		registry, err := newRegistry(gamesystem.Builtin(), roller)
		if err != nil {
			return err
		}

		callArgs := map[string]any{"notation": args[0]}
		if reason != "" {
			callArgs["reason"] = reason
		}
		res := registry.Execute(cmd.Context(), tool.Call{Name: tool.RollDiceName, Arguments: callArgs},
			tool.Context{GameSystem: system, UserID: "cli"})
		if res.IsError() {
			return errors.New(res.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Content)
		return nil
	},
}

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the supported game systems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := gamesystem.Builtin()
		systems := catalog.All()
		if ruleset, _ := cmd.Flags().GetString("fg"); ruleset != "" {
			s, err := catalog.ByFGRuleset(ruleset)
			if err != nil {
				return err
			}
			systems = []gamesystem.System{s}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDIE\tFANTASY GROUNDS")
		for _, s := range systems {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.PrimaryDie, s.FGRulesetID)
		}
		return w.Flush()
	},
}

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage campaign membership",
}

var memberAddCmd = &cobra.Command{
	Use:   "add <campaign-id> <user-id>",
	Short: "Add a user to a campaign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.openMembership(cmd.Context()); err != nil {
			return err
		}

		role, _ := cmd.Flags().GetString("role")
		if err := app.store.AddMember(cmd.Context(), args[0], args[1], role); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s to campaign %s\n", args[1], args[0])
		return nil
	},
}

var memberRemoveCmd = &cobra.Command{
	Use:   "remove <campaign-id> <user-id>",
	Short: "Remove a user from a campaign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.openMembership(cmd.Context()); err != nil {
			return err
		}

		if err := app.store.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		if app.cache != nil {
			if err := app.cache.Invalidate(cmd.Context(), args[0], args[1]); err != nil {
				app.logger.Warn("membership cache invalidation failed", "error", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s from campaign %s\n", args[1], args[0])
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list <campaign-id>",
	Short: "List the members of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.openMembership(cmd.Context()); err != nil {
			return err
		}

		members, err := app.store.Members(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tROLE\tJOINED")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.UserID, m.Role, m.JoinedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for development",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		auth, err := app.authenticator()
		if err != nil {
			return err
		}
		ttl := app.cfg.Auth.TokenTTL()
		if cmd.Flags().Changed("ttl") {
			ttl, _ = cmd.Flags().GetDuration("ttl")
		}
		token, err := auth.Issue(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var secretNames = map[string]string{
	"llm":          security.SecretLLMKey,
	"fallback-llm": security.SecretFallbackLLMKey,
	"jwt":          security.SecretJWT,
	"redis":        security.SecretRedisPassword,
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets referenced as \"[keyring]\" in the config file",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <llm|fallback-llm|jwt|redis> <value>",
	Short: "Store a secret in the OS keyring (or the encrypted vault)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ok := secretNames[args[0]]
		if !ok {
			return fmt.Errorf("unknown secret %q", args[0])
		}
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		if err := app.keyStore.Set(name, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s); reference it as %q in %s\n",
			args[0], security.MaskKey(args[1]), config.KeyringRef, app.loader.FilePath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config file if none exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader(cmd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(loader.FilePath()); err == nil {
			return fmt.Errorf("%s already exists", loader.FilePath())
		}
		cfg := config.Defaults()
		cfg.LLM.APIKey = config.KeyringRef
		if err := loader.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", loader.FilePath())
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, overrides http.addr")

	rollCmd.Flags().String("system", "5E_2014", "game system id")
	rollCmd.Flags().String("reason", "", "why the roll is made")
	rollCmd.Flags().Int64("seed", 0, "seed for a reproducible roll")
	systemsCmd.Flags().String("fg", "", "only the system for this Fantasy Grounds ruleset id")

	memberAddCmd.Flags().String("role", "player", "membership role")
	memberCmd.AddCommand(memberAddCmd, memberRemoveCmd, memberListCmd)

	tokenCmd.Flags().Duration("ttl", 0, "token lifetime, defaults to auth.token_ttl_hours")

	secretCmd.AddCommand(secretSetCmd)

	rootCmd.AddCommand(serveCmd, rollCmd, systemsCmd, memberCmd, tokenCmd, secretCmd, configInitCmd)
}
