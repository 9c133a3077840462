package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

func getPlayerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

var directions = []string{"up", "down", "left", "right"}

// command mirrors the server's inbound message shape
type command struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Command  string `json:"command,omitempty"`
	StarID   string `json:"starId,omitempty"`
}

// snapshot is the subset of the broadcast state the bot reacts to
type snapshot struct {
	Score int64 `json:"score"`
	Stars []struct {
		ID    string  `json:"id"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Value int     `json:"value"`
	} `json:"stars"`
}

var (
	sentCount      int64
	snapshotCount  int64
	collectedCount int64
	errorCount     int64
)

// register obtains a session token over the HTTP API
func register(serverURL, username string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username})
	resp, err := http.Post(serverURL+"/api/v1/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if !parsed.Success {
		return "", fmt.Errorf("registration rejected: status %d", resp.StatusCode)
	}
	return parsed.Data.Token, nil
}

// runBot drives a single player: join, wander, and collect any star
// that shows up in the broadcast
func runBot(serverURL, wsURL, username string, rate time.Duration, anonymous bool, done <-chan struct{}) {
	u, err := url.Parse(wsURL + "/ws")
	if err != nil {
		log.Printf("[%s] bad ws url: %v", username, err)
		atomic.AddInt64(&errorCount, 1)
		return
	}

	if !anonymous {
		token, err := register(serverURL, username)
		if err != nil {
			log.Printf("[%s] registration failed: %v", username, err)
			atomic.AddInt64(&errorCount, 1)
			return
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("[%s] dial failed: %v", username, err)
		atomic.AddInt64(&errorCount, 1)
		return
	}
	defer conn.Close()

	send := func(cmd command) {
		data, _ := json.Marshal(cmd)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			atomic.AddInt64(&errorCount, 1)
			return
		}
		atomic.AddInt64(&sentCount, 1)
	}

	send(command{Type: "join", Username: username})

	// Reader: watch broadcasts and try to grab a star occasionally
	starIDs := make(chan string, 8)
	go func() {
		defer close(starIDs)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var snap snapshot
			if err := json.Unmarshal(message, &snap); err != nil || len(snap.Stars) == 0 {
				continue
			}
			atomic.AddInt64(&snapshotCount, 1)
			select {
			case starIDs <- snap.Stars[rand.Intn(len(snap.Stars))].ID:
			default:
			}
		}
	}()

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			return
		case <-ticker.C:
			// Mostly wander; sometimes lunge at a star seen in a broadcast
			if rand.Intn(100) < 20 {
				select {
				case id, ok := <-starIDs:
					if ok && id != "" {
						send(command{Type: "collect_star", StarID: id})
						atomic.AddInt64(&collectedCount, 1)
						continue
					}
				default:
				}
			}
			send(command{Type: "move", Command: directions[rand.Intn(len(directions))]})
		}
	}
}

func main() {
	// Command line flags
	serverURL := flag.String("server", "http://localhost:8080", "Game server base URL")
	wsURL := flag.String("ws", "ws://localhost:8080", "Game server WebSocket base URL")
	totalBots := flag.Int("bots", 10, "Number of concurrent bot players")
	rate := flag.Duration("rate", 200*time.Millisecond, "Interval between commands per bot")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	anonymous := flag.Bool("anonymous", false, "Skip registration and connect without a token")
	flag.Parse()

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🚀 Sky Squad Load Bot")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Server:       %s\n", *serverURL)
	fmt.Printf("  WebSocket:    %s\n", *wsURL)
	fmt.Printf("  Bots:         %d\n", *totalBots)
	fmt.Printf("  Command rate: %s\n", *rate)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < *totalBots; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// Stagger connections so the server is not hit all at once
			time.Sleep(time.Duration(idx) * 50 * time.Millisecond)
			runBot(*serverURL, *wsURL, getPlayerName(idx), *rate, *anonymous, done)
		}(i)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			close(done)
			wg.Wait()
			printTotals()
			return

		case <-timeout:
			fmt.Println("\n\nDuration reached, shutting down...")
			close(done)
			wg.Wait()
			printTotals()
			return

		case <-statsTicker.C:
			fmt.Printf("[%s] Commands: %d | Snapshots: %d | Collect attempts: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sentCount),
				atomic.LoadInt64(&snapshotCount),
				atomic.LoadInt64(&collectedCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}

func printTotals() {
	fmt.Printf("\n✓ Completed. Commands: %d | Snapshots: %d | Collect attempts: %d | Errors: %d\n",
		atomic.LoadInt64(&sentCount),
		atomic.LoadInt64(&snapshotCount),
		atomic.LoadInt64(&collectedCount),
		atomic.LoadInt64(&errorCount),
	)
}
