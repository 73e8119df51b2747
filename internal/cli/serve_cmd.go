package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/mdns"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/agusx1211/usagebar/internal/buildinfo"
	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/webserver"
)

const serveMDNSServiceType = "_usagebar._tcp"

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"web"},
	Short:   "Serve usage over HTTP and WebSocket",
	Long: `Start an HTTP server exposing the usage report.

Endpoints:
  GET /              plain-text report
  GET /api/usage     JSON report (?provider=, ?key=)
  GET /ws/usage      WebSocket stream of JSON reports (?interval=)
  GET /api/health    liveness probe, never requires auth

Every request runs a fresh aggregation pass.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 8080, "Port to listen on")
	cmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	cmd.Flags().Bool("expose", false, "Bind to 0.0.0.0 for LAN access (enables TLS and a generated token)")
	cmd.Flags().String("tls", "", "TLS mode: 'self-signed' or 'custom' (requires --cert and --key)")
	cmd.Flags().String("cert", "", "Path to TLS certificate file (for --tls=custom)")
	cmd.Flags().String("key", "", "Path to TLS key file (for --tls=custom)")
	cmd.Flags().String("auth-token", "", "Require Bearer token for API access")
	cmd.Flags().Float64("rate-limit", 0, "Max requests per second per IP (0 = unlimited)")
	cmd.Flags().Duration("push-interval", webserver.DefaultPushInterval, "Default WebSocket push interval")
	cmd.Flags().Duration("timeout", 0, "Whole-pass deadline (default from config, 5s)")
	cmd.Flags().Bool("mdns", false, "Advertise server on local network via mDNS/Bonjour")
	cmd.Flags().Bool("qr", false, "Print a QR code of the server URL")
}

type serveSettings struct {
	opts      webserver.Options
	expose    bool
	mdns      bool
	qr        bool
	generated bool
}

func readServeFlags(cmd *cobra.Command) (serveSettings, error) {
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	expose, _ := cmd.Flags().GetBool("expose")
	tlsMode, _ := cmd.Flags().GetString("tls")
	certFile, _ := cmd.Flags().GetString("cert")
	keyFile, _ := cmd.Flags().GetString("key")
	authToken, _ := cmd.Flags().GetString("auth-token")
	rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
	pushInterval, _ := cmd.Flags().GetDuration("push-interval")
	enableMDNS, _ := cmd.Flags().GetBool("mdns")
	printQR, _ := cmd.Flags().GetBool("qr")

	s := serveSettings{expose: expose, mdns: enableMDNS || expose, qr: printQR || expose}
	if expose {
		host = "0.0.0.0"
		if !cmd.Flags().Changed("tls") {
			tlsMode = "self-signed"
		}
		if !cmd.Flags().Changed("auth-token") {
			authToken = generateToken()
			s.generated = true
		}
	}

	if tlsMode != "" && tlsMode != "self-signed" && tlsMode != "custom" {
		return s, fmt.Errorf("invalid --tls value %q, expected 'self-signed' or 'custom'", tlsMode)
	}
	if tlsMode == "custom" && (certFile == "" || keyFile == "") {
		return s, fmt.Errorf("--tls=custom requires both --cert and --key")
	}
	if port < 0 || port > 65535 {
		return s, fmt.Errorf("invalid --port %d", port)
	}
	if rateLimit < 0 {
		return s, fmt.Errorf("--rate-limit must not be negative")
	}

	s.opts = webserver.Options{
		Host:         host,
		Port:         port,
		TLSMode:      tlsMode,
		CertFile:     certFile,
		KeyFile:      keyFile,
		AuthToken:    strings.TrimSpace(authToken),
		RateLimit:    rateLimit,
		PushInterval: pushInterval,
	}
	return s, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := readServeFlags(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	src := newPassSource(cmd.ErrOrStderr(), timeout)

	if settings.generated {
		fmt.Fprintf(os.Stderr, "Generated auth token: %s\n", settings.opts.AuthToken)
	}
	if settings.expose {
		fmt.Fprintln(os.Stderr, "Warning: Exposing usage server on all interfaces.")
	}

	srv := webserver.New(src.fetch, settings.opts)
	if err := srv.Start(); err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			fmt.Fprintf(os.Stderr, "Port %d is already in use.\n", settings.opts.Port)
			fmt.Fprintf(os.Stderr, "Try: usagebar serve --port %d\n", settings.opts.Port+1)
		}
		return fmt.Errorf("starting web server: %w", err)
	}

	_, port := splitHostPort(srv.Addr())
	serverURL := displayURL(srv.Scheme(), settings.opts.Host, port, settings.opts.AuthToken)

	// OSC 8 hyperlink for terminals that support it.
	fmt.Printf("\033]8;;%s\033\\%s\033]8;;\033\\\n", serverURL, serverURL)
	if settings.opts.AuthToken != "" {
		fmt.Printf("Auth token required for API access.\n")
	}
	if settings.qr {
		if err := printServeQRCode(serverURL); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to render QR code: %v\n", err)
		}
	}

	if settings.mdns {
		server, err := startServeMDNSService(port, serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to start mDNS advertisement: %v\n", err)
		} else {
			defer server.Shutdown()
		}
	}

	debug.LogKV("cli", "serving", "addr", srv.Addr(), "scheme", srv.Scheme(), "auth", settings.opts.AuthToken != "")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	return nil
}

func generateToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// displayURL is the URL printed and encoded in the QR code. A wildcard bind
// is replaced by the first LAN address so other devices can reach it.
func displayURL(scheme, host string, port int, token string) string {
	switch host {
	case "0.0.0.0", "::", "":
		if ip := lanIP(); ip != "" {
			host = ip
		} else {
			host = "127.0.0.1"
		}
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: "/"}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String()
}

func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil && v4.IsPrivate() {
			return v4.String()
		}
	}
	return ""
}

func startServeMDNSService(port int, serverURL string) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid port for mDNS advertisement: %d", port)
	}
	host, _ := os.Hostname()
	name := "usagebar"
	if h := strings.TrimSpace(host); h != "" {
		name = "usagebar-" + strings.Split(h, ".")[0]
	}
	txtRecords := []string{
		fmt.Sprintf("version=%s", buildinfo.Current().Version),
		fmt.Sprintf("url=%s", serverURL),
	}
	service, err := mdns.NewMDNSService(name, serveMDNSServiceType, "local", "", port, nil, txtRecords)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{
		Zone: service,
	})
}

func printServeQRCode(serverURL string) error {
	code, err := qrcode.New(serverURL, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Println(code.ToString(false))
	return nil
}

func splitHostPort(addr string) (string, int) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return host, 0
	}
	return host, port
}
