package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/share"
	"github.com/marianozunino/ezyshare/internal/utils"
)

const defaultServer = "http://localhost:3002/"

var (
	baseURL   string
	client    *Client
	configDir string
)

// PinLookup is the answer to a PIN-only lookup.
type PinLookup struct {
	FileID      string `json:"fileId"`
	DownloadURL string `json:"downloadUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// do sends req and decodes a response with status want into out. Any other
// status is turned into an error carrying the server's message.
func (c *Client) do(req *http.Request, want int, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) ShareFile(filePath string) (*model.Descriptor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, file); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"api/shares", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var desc model.Descriptor
	if err := c.do(req, http.StatusCreated, &desc); err != nil {
		return nil, fmt.Errorf("share failed: %w", err)
	}
	return &desc, nil
}

func (c *Client) ShareText(text string) (*model.Descriptor, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"api/shares/text", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var desc model.Descriptor
	if err := c.do(req, http.StatusCreated, &desc); err != nil {
		return nil, fmt.Errorf("share failed: %w", err)
	}
	return &desc, nil
}

func (c *Client) GetShare(id string) (*model.PublicShare, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"api/shares/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var pub model.PublicShare
	if err := c.do(req, http.StatusOK, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

func (c *Client) Verify(id, pin string) (*model.Grant, error) {
	body, err := json.Marshal(map[string]string{"pin": pin})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"api/shares/"+url.PathEscape(id)+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var grant model.Grant
	if err := c.do(req, http.StatusOK, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (c *Client) FindByPin(pin string) (*PinLookup, error) {
	body, err := json.Marshal(map[string]string{"pin": pin})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"api/pin", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var found PinLookup
	if err := c.do(req, http.StatusOK, &found); err != nil {
		return nil, err
	}
	return &found, nil
}

// Download fetches a signed retrieval URL into dst.
func (c *Client) Download(signedURL, dst string) (int64, error) {
	resp, err := c.HTTPClient.Get(signedURL)
	if err != nil {
		return 0, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return n, nil
}

// outputPath picks where a downloaded share lands. The server-supplied name
// is reduced to its base so it cannot escape dir.
func outputPath(dir, name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = "download"
	}
	return filepath.Join(dir, name)
}

func formatExpirationDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("Jan 2, 2006 at 3:04 PM")
}

func formatRemaining(d time.Duration) string {
	switch {
	case d <= 0:
		return "expired"
	case d < time.Minute:
		return "less than a minute"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func printDescriptor(w io.Writer, desc *model.Descriptor, now time.Time) {
	if desc.IsText {
		fmt.Fprintf(w, "Shared text (%s)\n", utils.FormatFileSize(desc.FileSize))
	} else {
		fmt.Fprintf(w, "Shared %s (%s)\n", desc.OriginalName, utils.FormatFileSize(desc.FileSize))
	}
	fmt.Fprintf(w, "Link:    %s\n", desc.DownloadURL)
	fmt.Fprintf(w, "PIN:     %s\n", desc.PinCode)
	fmt.Fprintf(w, "QR link: %s\n", desc.QRPayload)
	fmt.Fprintf(w, "Expires: %s (%s)\n", formatExpirationDate(desc.ExpiresAt), formatRemaining(desc.ExpiresAt.Sub(now)))
}

var rootCmd = &cobra.Command{
	Use:   "ezyshare",
	Short: "ezyshare client - share files and text behind a PIN",
	Long: `ezyshare is a command-line client for an ezyshare server.

Quick start:
  ezyshare share report.pdf                  # Share a file
  ezyshare share --text "meet at 5"          # Share a snippet of text
  ezyshare get <id|link> --pin 123456        # Retrieve a share
  ezyshare find --pin 123456                 # Find a share by PIN alone
  ezyshare config set server https://share.example.com/`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		baseURL = viper.GetString("server")
		if baseURL == "" {
			baseURL = defaultServer
		}
		client = NewClient(baseURL)
	},
}

var shareCmd = &cobra.Command{
	Use:     "share [file]",
	Aliases: []string{"s", "up"},
	Short:   "Share a file or a piece of text",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")

		var (
			desc *model.Descriptor
			err  error
		)
		switch {
		case text != "" && len(args) > 0:
			return errors.New("pass either a file or --text, not both")
		case text != "":
			desc, err = client.ShareText(text)
		case len(args) == 1:
			desc, err = client.ShareFile(args[0])
		default:
			return errors.New("file path required when not using --text")
		}
		if err != nil {
			return err
		}

		printDescriptor(cmd.OutOrStdout(), desc, time.Now())
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:     "get <id|link>",
	Aliases: []string{"g", "download"},
	Short:   "Unlock a share with its PIN",
	Long: `Unlock a share with its PIN. Text is printed, files are saved to --output.

The share can be named by id or by the full link, including links that
already carry ?pin=.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pin, _ := cmd.Flags().GetString("pin")
		dir, _ := cmd.Flags().GetString("output")

		if pin == "" {
			if u, err := url.Parse(args[0]); err == nil {
				pin = u.Query().Get("pin")
			}
		}
		if !utils.IsPin(pin) {
			return share.ErrMalformedPin
		}

		id := share.ExtractID(args[0])
		grant, err := client.Verify(id, pin)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if grant.Kind == model.KindText {
			fmt.Fprintln(out, grant.TextContent)
			return nil
		}

		dst := outputPath(dir, grant.OriginalName)
		n, err := client.Download(grant.DownloadURL, dst)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s (%s)\n", dst, utils.FormatFileSize(n))
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find a share by its PIN alone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pin, _ := cmd.Flags().GetString("pin")
		if !utils.IsPin(pin) {
			return share.ErrMalformedPin
		}

		found, err := client.FindByPin(pin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ID:   %s\nLink: %s\n", found.FileID, found.DownloadURL)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"c", "cfg"},
	Short:   "Manage client configuration",
	Long: `Manage client configuration settings like the server URL.

Configuration is stored in ~/.ezyshare/config.yaml`,
}

var configSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Aliases: []string{"s"},
	Short:   "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  • server: Server URL (e.g., https://share.example.com/)

Example: ezyshare config set server https://share.example.com/`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		viper.Set(key, value)
		if err := viper.WriteConfigAs(filepath.Join(configDir, "config.yaml")); err != nil {
			return fmt.Errorf("error saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:     "get <key>",
	Aliases: []string{"g"},
	Short:   "Get a configuration value",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := viper.GetString(key)

		if value == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not set\n", key)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		}
		return nil
	},
}

func init() {
	homeDir, _ := os.UserHomeDir()
	configDir = filepath.Join(homeDir, ".ezyshare")
	os.MkdirAll(configDir, 0o755)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("EZYSHARE")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore errors if config file doesn't exist

	rootCmd.PersistentFlags().StringP("server", "s", "", "Server URL (default: "+defaultServer+")")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	shareCmd.Flags().StringP("text", "t", "", "Share this text instead of a file")

	getCmd.Flags().StringP("pin", "p", "", "6-digit PIN")
	getCmd.Flags().StringP("output", "o", ".", "Directory to save files into")

	findCmd.Flags().StringP("pin", "p", "", "6-digit PIN (required)")
	findCmd.MarkFlagRequired("pin")

	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
