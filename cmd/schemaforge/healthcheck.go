package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running server's /healthz endpoint",
	RunE:  runHealthcheck,
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.ListenAddr
	url := "http://" + strings.TrimPrefix(addr, ":") + "/healthz"
	if strings.HasPrefix(addr, ":") {
		url = "http://localhost" + addr + "/healthz"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemaforge is not healthy: %v\n", err)
		os.Exit(1)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "schemaforge is not healthy: status %d\n", resp.StatusCode)
		os.Exit(1)
		return nil
	}

	fmt.Println("schemaforge is healthy")
	return nil
}
