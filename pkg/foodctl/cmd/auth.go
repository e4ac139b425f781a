package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
	"github.com/vnfood/foodctl/pkg/foodctl/output"
	"github.com/vnfood/foodctl/pkg/foodctl/session"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the login session",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthLogoutCommand(),
		newAuthStatusCommand(),
		newAuthRefreshCommand(),
		newAuthRegisterCommand(),
		newAuthTokenCommand(),
	)
	return cmd
}

type credentialFlags struct {
	username      string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from stdin")
}

// resolve fills missing values from input, one line each: the username when
// not given as a flag, then the password.
func (f *credentialFlags) resolve(rt *runtimeState) (string, string, error) {
	reader := bufio.NewReader(rt.Input())
	username := f.username
	if username == "" {
		_, _ = fmt.Fprint(rt.ErrWriter(), "Username: ")
		line, err := readLine(reader)
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = line
	}
	password := f.password
	if password == "" || f.passwordStdin {
		if !f.passwordStdin {
			_, _ = fmt.Fprint(rt.ErrWriter(), "Password: ")
		}
		line, err := readLine(reader)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = line
	}
	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newAuthLoginCommand() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			username, password, err := flags.resolve(rt)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				cred, err := c.Login(cmd.Context(), username, password)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s\n", cred.Username)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newAuthRegisterCommand() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			username, password, err := flags.resolve(rt)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				if err := c.Account().Register(cmd.Context(), username, password); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(rt.Writer(), "Account %s created; run 'foodctl auth login'\n", username)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				if err := c.Logout(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
				return nil
			})
		},
	}
}

// AuthStatus is the output of `auth status`.
type AuthStatus struct {
	State           session.State `json:"state" yaml:"state"`
	Username        string        `json:"username,omitempty" yaml:"username,omitempty"`
	Backend         string        `json:"backend" yaml:"backend"`
	AccessExpiresAt *time.Time    `json:"accessExpiresAt,omitempty" yaml:"accessExpiresAt,omitempty"`
	AccessExpired   bool          `json:"accessExpired" yaml:"accessExpired"`
	Verified        *bool         `json:"verified,omitempty" yaml:"verified,omitempty"`
}

func newAuthStatusCommand() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				status := AuthStatus{State: c.State()}
				if cred, ok := c.Credential(); ok {
					status.Username = cred.Username
					if claims, err := auth.ParseClaims(cred.AccessToken); err == nil && !claims.ExpiresAt.IsZero() {
						exp := claims.ExpiresAt
						status.AccessExpiresAt = &exp
						status.AccessExpired = claims.Expired(time.Now())
					}
				}
				status.Backend = backendName(c)
				if verify && status.State == session.Authenticated {
					ok, err := c.Account().Verify(cmd.Context())
					if err != nil {
						return err
					}
					status.Verified = &ok
					status.State = c.State()
				}
				return rt.write(status, func(w io.Writer) { writeAuthStatus(w, status) })
			})
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the session against the server, refreshing if needed")
	return cmd
}

func backendName(c *apiClient) string {
	if b := c.CredentialBackend(); b != nil {
		return b.Name()
	}
	return ""
}

func writeAuthStatus(w io.Writer, s AuthStatus) {
	rows := [][2]string{{"State", string(s.State)}}
	if s.Username != "" {
		rows = append(rows, [2]string{"User", s.Username})
	}
	rows = append(rows, [2]string{"Backend", s.Backend})
	if s.AccessExpiresAt != nil {
		expiry := output.FormatTime(*s.AccessExpiresAt)
		if s.AccessExpired {
			expiry += " (expired, refreshed on next request)"
		}
		rows = append(rows, [2]string{"Access token expires", expiry})
	}
	if s.Verified != nil {
		rows = append(rows, [2]string{"Verified", fmt.Sprintf("%t", *s.Verified)})
	}
	output.WriteKeyValues(w, rows)
}

func newAuthRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				if _, err := c.Refresh(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(rt.Writer(), "Access token refreshed")
				return nil
			})
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it when close to expiry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				token, err := c.TokenSource(cmd.Context()).Token()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(rt.Writer(), token.AccessToken)
				return nil
			})
		},
	}
}
