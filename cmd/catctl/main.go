package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Cat City server URL")
	user := flag.String("user", "", "User name shown in chat (default: You)")
	flag.Parse()

	fmt.Println("Cat City CLI")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave. Plain text goes to the global chat.")
	fmt.Println("Try /help, /who, /do jump, /whisper <name> <text>. Local: /gateways, /snap")
	fmt.Println("---")

	fetchSnapshot(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/gateways" {
			fetchStatus(*server)
			continue
		}
		if input == "/snap" {
			fetchSnapshot(*server)
			continue
		}

		sendMessage(*server, *user, input)
	}
}

func fetchSnapshot(server string) {
	resp, err := http.Get(server + "/api/snapshot")
	if err != nil {
		printError("Failed to fetch snapshot: %v", err)
		return
	}
	defer resp.Body.Close()

	var snap struct {
		Player struct {
			Position struct{ X, Y float64 } `json:"position"`
			Action   string                 `json:"action"`
		} `json:"player"`
		Agents []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Action string `json:"action"`
			Level  int    `json:"level"`
		} `json:"agents"`
		UnreadGlobal  int `json:"unread_global"`
		UnreadPrivate int `json:"unread_private"`
		Notification  *struct {
			Message string `json:"message"`
		} `json:"notification"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		printError("Failed to parse snapshot: %v", err)
		return
	}
	fmt.Printf("You: %s at (%.0f, %.0f) | unread %d global, %d private\n",
		snap.Player.Action, snap.Player.Position.X, snap.Player.Position.Y,
		snap.UnreadGlobal, snap.UnreadPrivate)
	if len(snap.Agents) == 0 {
		fmt.Println("Nobody else is around.")
	}
	for _, a := range snap.Agents {
		fmt.Printf("  \033[36m%s\033[0m lvl %d, %s\n", a.Name, a.Level, a.Action)
	}
	if snap.Notification != nil {
		fmt.Printf("\033[33m* %s\033[0m\n", snap.Notification.Message)
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform  string `json:"platform"`
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
		Details   string `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		icon := "\033[31m✗\033[0m"
		if s.Connected {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s", icon, s.Platform)
		if s.Details != "" {
			fmt.Printf(" (%s)", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m(%s)\033[0m", s.Error)
		}
		fmt.Println()
	}
}

func sendMessage(server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_name": user,
		"content":   content,
	})

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(
		server+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var msg struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	fmt.Println(msg.Content)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
