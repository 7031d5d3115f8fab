package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vita-chat/internal/model"
)

func (a *app) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit your profile",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.svc.Users.GetMe(cmd.Context())
			if err != nil {
				return err
			}
			a.printUser(u)
			return nil
		},
	})

	var name, email string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change your name or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req model.UpdateUserRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			u, err := a.svc.Users.UpdateMe(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Profile updated\n", okStyle("✓"))
			a.printUser(u)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "new display name")
	update.Flags().StringVar(&email, "email", "", "new email")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "avatar <image-file>",
		Short: "Upload a new profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			u, err := a.svc.Users.UploadAvatar(cmd.Context(), f.Name(), f, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Avatar updated: %s\n", okStyle("✓"), u.ImgURL)
			return nil
		},
	})

	return cmd
}

func (a *app) printUser(u *model.User) {
	fmt.Fprintf(a.out, "%s <%s>\n", titleStyle(u.Name), u.Email)
	fmt.Fprintf(a.out, "role:     %s\n", u.Role)
	if u.ImgURL != "" {
		fmt.Fprintf(a.out, "avatar:   %s\n", u.ImgURL)
	}
	verified := "no"
	if u.VerifiedAt != nil {
		verified = formatTime(*u.VerifiedAt)
	}
	fmt.Fprintf(a.out, "verified: %s\n", verified)
	fmt.Fprintf(a.out, "joined:   %s\n", formatTime(u.CreatedAt))
}
