package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/game-leaderboard/internal/domain"
)

// submission is the message body the leaderboard consumer decodes
type submission struct {
	PlayerID   string `json:"playerId"`
	GameID     string `json:"gameId"`
	Score      int64  `json:"score"`
	PlayerName string `json:"playerName"`
}

var namePrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func playerName(idx int) string {
	return fmt.Sprintf("%s%d", namePrefixes[idx%len(namePrefixes)], idx/len(namePrefixes)+1)
}

// nextSubmission picks a random player and game. Skilled players (low index) score higher.
func nextSubmission(rng *rand.Rand, players, games int) submission {
	idx := rng.Intn(players)
	ceiling := domain.MaxScore + 1
	if idx >= 10 {
		ceiling = ceiling / 2
	}
	return submission{
		PlayerID:   fmt.Sprintf("player%05d", idx),
		GameID:     fmt.Sprintf("game%03d", rng.Intn(games)+1),
		Score:      rng.Int63n(ceiling),
		PlayerName: playerName(idx),
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-scores", "Kafka topic")
	players := flag.Int("players", 1000, "Number of distinct players")
	games := flag.Int("games", 5, "Number of distinct games")
	rate := flag.Int("rate", 100, "Submissions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = until interrupted)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *players <= 0 || *games <= 0 || *rate <= 0 {
		logger.Error("players, games and rate must be positive")
		os.Exit(1)
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		logger.Error("failed to create producer", "error", err)
		os.Exit(1)
	}

	var sent, failed int64
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&sent, 1)
		}
	}()
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&failed, 1)
			logger.Warn("producer error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logger.Info("producing scores", "brokers", *brokers, "topic", *topic, "players", *players, "games", *games, "rate", *rate)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case <-ticker.C:
			sub := nextSubmission(rng, *players, *games)
			data, err := json.Marshal(sub)
			if err != nil {
				logger.Error("failed to marshal submission", "error", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(sub.PlayerID),
				Value: sarama.ByteEncoder(data),
			}
			select {
			case producer.Input() <- msg:
			case <-ctx.Done():
				break loop
			}

		case <-statsTicker.C:
			logger.Info("progress", "sent", atomic.LoadInt64(&sent), "errors", atomic.LoadInt64(&failed))
		}
	}

	producer.AsyncClose()
	wg.Wait()
	logger.Info("completed", "sent", atomic.LoadInt64(&sent), "errors", atomic.LoadInt64(&failed))
}
