package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Config for the read-only history viewer. It talks to the running server
// over the REST endpoint instead of opening the database itself.
type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	Token     string `envconfig:"VIEWER_TOKEN" required:"true"`
	Colours   bool   `envconfig:"COLOURS" default:"true"`
}

type message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
}

type historyResponse struct {
	Success  bool      `json:"success"`
	Messages []message `json:"messages"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	history, err := fetchHistory(config)
	if err != nil {
		log.Fatalf("Failed to fetch history: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Seq", "At", "Sender", "Text"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, msg := range history.Messages {
		sender := msg.Sender
		if config.Colours {
			sender = color.Green.Render(sender)
		}
		table.Append([]string{
			fmt.Sprintf("%d", msg.Sequence),
			msg.Timestamp.Local().Format("15:04:05"),
			sender,
			msg.Text,
		})
	}

	fmt.Printf("%d messages\n", len(history.Messages))
	table.Render()
}

func fetchHistory(config Config) (historyResponse, error) {
	req, err := http.NewRequest(http.MethodGet, config.ServerURL+"/api/chat/messages", nil)
	if err != nil {
		return historyResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+config.Token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return historyResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return historyResponse{}, fmt.Errorf("server returned %s", resp.Status)
	}

	var history historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return historyResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return history, nil
}
