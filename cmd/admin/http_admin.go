package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func stateCmd(args []string) {
	fs := pflag.NewFlagSet("state", pflag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", "", "admin token (default $ACH_ADMIN_TOKEN)")
	_ = fs.Parse(args)

	req, err := adminRequest(http.MethodGet, adminURL(*baseURL, "state"), *token, nil)
	if err != nil {
		fatalf(2, "%v", err)
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		fatalf(1, "request: %v", err)
	}
	printResponse(resp)
}

// pushCmd imports a file into a running server, which archives the previous
// state itself.
func pushCmd(args []string) {
	fs := pflag.NewFlagSet("push", pflag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", "", "admin token (default $ACH_ADMIN_TOKEN)")
	yes := fs.Bool("yes", false, "confirm replacing every achievement in the world")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatalf(2, "usage: admin push [flags] <file>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf(1, "read: %v", err)
	}
	u := adminURL(*baseURL, "import")
	if *yes {
		u += "?confirm=true"
	}
	req, err := adminRequest(http.MethodPost, u, *token, bytes.NewReader(data))
	if err != nil {
		fatalf(2, "%v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		fatalf(1, "request: %v", err)
	}
	printResponse(resp)
}

func adminURL(base, name string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/admin/v1/" + name
}

func adminRequest(method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if token == "" {
		token = os.Getenv("ACH_ADMIN_TOKEN")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func printResponse(resp *http.Response) {
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
