package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/storelink-api/internal/domain/referral"
)

func referralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Manage referral codes",
	}

	var (
		count  int
		length int
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Generate unused referral codes",
		Long: `Generate referral codes and store them as unused.

Examples:
  storelink referral mint --count 20
  storelink referral mint -n 5 --length 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, deps *cliDeps) error {
				repo := referral.NewRepositoryImpl(deps.db.Pool, deps.logger)
				svc := referral.NewReferralService(repo, nil, nil, deps.logger)

				codes, err := svc.Mint(ctx, count, length)
				if err != nil {
					return err
				}
				for _, code := range codes {
					fmt.Fprintln(cmd.OutOrStdout(), code)
				}
				return nil
			})
		},
	}
	mint.Flags().IntVarP(&count, "count", "n", 10, "number of codes to generate")
	mint.Flags().IntVar(&length, "length", referral.DefaultCodeLength, "characters per code")

	cmd.AddCommand(mint)
	return cmd
}
