package cmd

import (
	"context"
	"fmt"

	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/db"
	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/db/repository"
	"github.com/framelight/previz-server/internal/utils/hashutil"
	"github.com/framelight/previz-server/internal/utils/randutil"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var apiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Manage previz API keys",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := Cmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}

		driver, err := db.NewConnection(cmd.Context(), config.MustGetConfig())
		if err != nil {
			return err
		}

		repo := repository.NewAPIKeyRepository(driver.GetDB())
		cmd.SetContext(context.WithValue(cmd.Context(), apiKeyRepoKey, repo))
		return nil
	},
}

type contextKey string

const apiKeyRepoKey contextKey = "apikey_repo"

func init() {
	newAPIKeyCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := randutil.RandomString(32)
			if err != nil {
				return err
			}

			mask := randutil.MaskString(key, 4, 4)
			repo := cmd.Context().Value(apiKeyRepoKey).(repository.IAPIKeyRepository)
			apiKey := models.APIKey{
				KeyMask:   mask,
				IsRevoked: false,
				ID:        uuid.Must(uuid.NewRandom()),
				KeyHash:   hashutil.Blake3Hash([]byte(key)),
			}

			if _, err := repo.Create(cmd.Context(), &apiKey); err != nil {
				return err
			}

			fmt.Printf("API key created: %s\n", key)
			return nil
		},
	}

	revokeAPIKeyCmd := &cobra.Command{
		Use:   "revoke [key]",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			repo := cmd.Context().Value(apiKeyRepoKey).(repository.IAPIKeyRepository)

			if err := repo.RevokeAPIKeyWithHash(cmd.Context(), hashutil.Blake3Hash([]byte(key))); err != nil {
				return err
			}

			fmt.Printf("API key revoked: %s\n", key)
			return nil
		},
	}

	listAPIKeysCmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := cmd.Context().Value(apiKeyRepoKey).(repository.IAPIKeyRepository)

			apiKeys, err := repo.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}

			if len(apiKeys) == 0 {
				fmt.Println("No API keys found")
				return nil
			}

			fmt.Println("API keys:")
			for _, apiKey := range apiKeys {
				fmt.Printf("%s (Revoked: %t)\n", apiKey.KeyMask, apiKey.IsRevoked)
			}

			return nil
		},
	}

	apiKeyCmd.AddCommand(newAPIKeyCmd, revokeAPIKeyCmd, listAPIKeysCmd)
}
