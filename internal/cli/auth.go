package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/api"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. The token and viewer record are kept
in the configured session storage for later commands.

The password is read from the first line of stdin when --password is not set.

Examples:
  blogportal login --email me@example.com
  echo "$PASS" | blogportal login --email me@example.com`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := p.Login(cmd.Context(), api.Credentials{Email: email, Password: pw}); err != nil {
				return err
			}
			a.printer.Success("Signed in as %s", viewerLabel(p))
			a.printer.PrintHints("login")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default: read from stdin)")
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var email, username, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Long: `Register a new viewer and sign in straight away.

Examples:
  blogportal signup --email me@example.com --username reader`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			creds := api.Credentials{Email: email, Username: username, Password: pw}
			if err := p.Signup(cmd.Context(), creds); err != nil {
				return err
			}
			a.printer.Success("Welcome, %s", viewerLabel(p))
			a.printer.PrintHints("signup")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "account password (default: read from stdin)")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := p.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printer.Success("Signed out")
			a.printer.PrintHints("logout")
			return nil
		},
	}
}

type statusReport struct {
	State     string     `json:"state"`
	Decision  string     `json:"decision"`
	Reason    string     `json:"reason"`
	Expired   bool       `json:"expired"`
	ViewerID  string     `json:"viewerId,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (a *app) statusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session and the guard's decision",
		Long: `Evaluate the session guard the way a protected view would and report
the outcome. The command always succeeds; use the exit code of a protected
command such as 'latest' to script on authentication.

Examples:
  blogportal status
  blogportal status --json`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			m := p.Mount()
			state := m.Resolve(cmd.Context())
			d, _ := m.Decision()

			report := statusReport{
				State:    state.String(),
				Decision: d.Kind.String(),
				Reason:   string(d.Reason),
				Expired:  d.Expired,
				ViewerID: p.Session().ViewerID(),
			}
			if d.Claims != nil {
				report.Subject = d.Claims.Subject
				if d.Claims.HasExpiry {
					exp := d.Claims.ExpiresAt
					report.ExpiresAt = &exp
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(a.printer.Out())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			a.printStatus(report, d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func (a *app) printStatus(r statusReport, d goBlog.Decision) {
	a.printer.Header("Session")
	a.printer.Print("  Guard:    %s %s", a.printer.StatusBadge(r.State), a.printer.Dim(r.Decision))
	a.printer.Print("  Reason:   %s", a.printer.StatusBadge(r.Reason))
	viewer := r.ViewerID
	if viewer == "" {
		viewer = "-"
	}
	a.printer.Print("  Viewer:   %s", viewer)
	if r.ExpiresAt != nil {
		a.printer.Print("  Expires:  %s", r.ExpiresAt.Local().Format(time.RFC1123))
	}
	if d.Expired && d.Allowed() {
		a.printer.Warning("Token expired; shown as signed in because guard.expired is allow")
	}
	a.printer.PrintHints("status")
}

// readPassword returns flag when set, else the first line of in.
func readPassword(in io.Reader, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	sc := bufio.NewScanner(in)
	if sc.Scan() {
		return strings.TrimRight(sc.Text(), "\r\n"), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return "", nil
}

func viewerLabel(p *goBlog.Portal) string {
	s := p.Session()
	var v api.Viewer
	if err := json.Unmarshal(s.Viewer, &v); err == nil {
		if v.Username != "" {
			return v.Username
		}
		if v.Email != "" {
			return v.Email
		}
	}
	return s.ViewerID()
}
