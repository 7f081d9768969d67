package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/config"
	"github.com/ukydev/bridge-traffic-sim/internal/messaging"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/simulation"
)

// phases builds the two alternating commands: road traffic and the bridge
// closed, then waterway traffic with the bridge open.
func phases(world *simulation.World) [2]models.LightCommand {
	road := models.LightCommand{models.BridgeKey: "rood", models.BridgeApproachKey: "groen"}
	water := models.LightCommand{models.BridgeKey: "groen", models.BridgeApproachKey: "rood"}

	lights := world.Lights()
	keys := lo.Keys(lights)
	slices.Sort(keys)
	for _, key := range keys {
		if lo.Contains(lights[key].Kinds, models.KindBoat) {
			road[key], water[key] = "rood", "groen"
		} else {
			road[key], water[key] = "groen", "rood"
		}
	}
	return [2]models.LightCommand{road, water}
}

// apiPublisher sends commands through the simulator's operator API.
type apiPublisher struct {
	baseURL string
	token   string
	client  *http.Client
}

func (p *apiPublisher) authorizedPost(url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	return p.client.Do(req)
}

func (p *apiPublisher) login(username, password string) error {
	data, err := json.Marshal(models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	resp, err := p.authorizedPost(p.baseURL+"/auth/login", data)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}

	var result models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	p.token = result.Token
	return nil
}

// Publish ignores the topic: the API only accepts light commands.
func (p *apiPublisher) Publish(_ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	resp, err := p.authorizedPost(p.baseURL+"/lights", data)
	if err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("command rejected with status: %d", resp.StatusCode)
	}
	return nil
}

// cycle publishes the phases in turn, one every interval, until ctx is done.
func cycle(ctx context.Context, pub messaging.Publisher, commands [2]models.LightCommand, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for i := 0; ; i++ {
		cmd := commands[i%2]
		if err := pub.Publish(models.TopicLights, cmd); err != nil {
			log.WithError(err).Error("Failed to send light command")
		} else {
			log.WithFields(log.Fields{"phase": i % 2, "lights": len(cmd)}).Info("Sent light command")
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		log.WithError(err).Fatal("Failed to load settings")
	}
	config.SetupLogging(settings.LogLevel, settings.LogFormat)

	interval := 15 * time.Second
	if v := os.Getenv("CONTROLLER_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	topology, err := config.LoadTopology(settings.TopologyFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load topology")
	}
	world, err := topology.BuildWorld()
	if err != nil {
		log.WithError(err).Fatal("Invalid topology")
	}

	var pub messaging.Publisher
	if apiURL := os.Getenv("API_BASE_URL"); apiURL != "" {
		p := &apiPublisher{baseURL: apiURL, client: &http.Client{Timeout: 10 * time.Second}}
		if err := p.login(settings.OperatorUsername, settings.OperatorPassword); err != nil {
			log.WithError(err).Fatal("Failed to authenticate against the simulator")
		}
		pub = p
	} else {
		clientID := os.Getenv("MQTT_CLIENT_ID")
		if clientID == "" {
			clientID = "controller-" + uuid.NewString()
		}
		m, err := messaging.Dial(messaging.Config{Broker: settings.MQTTBroker, ClientID: clientID})
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to broker")
		}
		defer m.Close()
		pub = m
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"interval": interval,
		"lights":   len(world.Lights()),
	}).Info("Starting stand-in controller")
	cycle(ctx, pub, phases(world), interval)
	log.Info("Controller stopped")
}
