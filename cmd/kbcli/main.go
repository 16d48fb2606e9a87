package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kbhub/internal/client/api"
	"kbhub/internal/client/authz"
	"kbhub/internal/client/feed"
	"kbhub/internal/client/query"
	"kbhub/internal/client/session"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:           "kbcli",
		Short:         "Command-line client for the knowledge-base service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("KBHUB_SERVER", "http://127.0.0.1:8080/api"), "base URL of the API")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newKBCmd(),
		newAskCmd(),
		newFeedCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newSession() (*session.Session, *api.Client, error) {
	store, err := session.DefaultFileStore()
	if err != nil {
		return nil, nil, err
	}
	client := api.New(serverURL)
	return session.New(client, store), client, nil
}

// requireUser resolves the stored credential and fails when signed out.
func requireUser(ctx context.Context) (*session.Session, *api.Client, *api.User, error) {
	sess, client, err := newSession()
	if err != nil {
		return nil, nil, nil, err
	}
	user := sess.Resolve(ctx)
	if user == nil {
		return nil, nil, nil, fmt.Errorf("not logged in, run `kbcli login` first")
	}
	return sess, client, user, nil
}

func newLoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := newSession()
			if err != nil {
				return err
			}
			if err := sess.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", sess.CurrentUser().Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := newSession()
			if err != nil {
				return err
			}
			if err := sess.Logout(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, user, err := requireUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s> (id %d)\n", user.Username, user.Email, user.ID)
			return nil
		},
	}
}

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect knowledge bases",
	}
	cmd.AddCommand(newKBListCmd(), newKBMembersCmd())
	return cmd
}

func newKBListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accessible knowledge bases",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := requireUser(cmd.Context())
			if err != nil {
				return err
			}
			kbs, err := client.ListKnowledgeBases(cmd.Context())
			if err != nil {
				return err
			}
			for _, kb := range kbs {
				fmt.Printf("%d\t%s/%s\t%s\t%d documents\n",
					kb.ID, kb.OwnerUsername, kb.Name, kb.Visibility, kb.DocumentCount)
			}
			return nil
		},
	}
}

func newKBMembersCmd() *cobra.Command {
	var kbID uint
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List members of a knowledge base with your capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, user, err := requireUser(cmd.Context())
			if err != nil {
				return err
			}
			kb, err := client.GetKnowledgeBase(cmd.Context(), kbID)
			if err != nil {
				return err
			}
			members, err := client.ListMembers(cmd.Context(), kbID)
			if err != nil {
				return err
			}

			authority := authz.NewAuthority(*kb, members, user.ID)
			for _, m := range members {
				marker := ""
				if !authority.CanChangeRole(m.UserID) {
					marker = " (role locked)"
				}
				fmt.Printf("%s\t%s%s\n", m.Username, m.Role, marker)
			}
			fmt.Printf("your role: %s, manage members: %v, delete: %v\n",
				authority.EffectiveRole(), authority.CanManageMembers(), authority.CanDelete())
			return nil
		},
	}
	cmd.Flags().UintVar(&kbID, "kb", 0, "knowledge base id")
	cmd.MarkFlagRequired("kb")
	return cmd
}

func newAskCmd() *cobra.Command {
	var kbIDs []uint
	var topK int
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question across selected knowledge bases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := requireUser(cmd.Context())
			if err != nil {
				return err
			}
			kbs, err := client.ListKnowledgeBases(cmd.Context())
			if err != nil {
				return err
			}
			allIDs := make([]uint, 0, len(kbs))
			for _, kb := range kbs {
				allIDs = append(allIDs, kb.ID)
			}

			coordinator := query.NewCoordinator(client)
			result, err := coordinator.Ask(cmd.Context(), args[0], kbIDs, allIDs, topK)
			if err != nil {
				return err
			}

			fmt.Println(result.Answer)
			for i, source := range result.Sources {
				fmt.Printf("\n[source %d] %s\n", i+1, source)
			}
			return nil
		},
	}
	cmd.Flags().UintSliceVar(&kbIDs, "kb", nil, "knowledge base ids to target (default: all)")
	cmd.Flags().IntVar(&topK, "top-k", 5, "number of source chunks to retrieve")
	return cmd
}

func newFeedCmd() *cobra.Command {
	var scope string
	var limit int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the activity feed grouped by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := requireUser(cmd.Context())
			if err != nil {
				return err
			}
			activities, err := client.ListActivities(cmd.Context(), scope, limit)
			if err != nil {
				return err
			}

			for _, group := range feed.Aggregate(activities, time.Now()) {
				fmt.Println(group.Date)
				for _, item := range group.Items {
					fmt.Printf("  %s %s (%s)\n", item.Activity.Username, item.ActionText, item.RelativeTime)
					if item.HasBox {
						if item.BoxPrimary != "" {
							fmt.Printf("    %s\n", item.BoxPrimary)
						}
						if item.BoxSecondary != "" {
							fmt.Printf("    %s\n", item.BoxSecondary)
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "feed scope: all or mine")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	return cmd
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
