// alert-seeder posts synthetic driver alerts at the ingestion API, useful
// for exercising escalation rules against a running instance.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	apiURL      = flag.String("api-url", "http://localhost:3000", "fleetwatch API base URL")
	token       = flag.String("token", "", "bearer token for authenticated runs (optional)")
	count       = flag.Int("count", 50, "Number of alerts to generate")
	interval    = flag.Duration("interval", 250*time.Millisecond, "Interval between alerts")
	drivers     = flag.Int("drivers", 10, "Number of distinct drivers to spread alerts over")
	sourceTypes = flag.String("types", "overspeed,feedback_negative,document_expiry,safety_incident", "Comma-separated source types")
	burst       = flag.Int("burst", 0, "Send this many alerts for one driver and type first, to trip escalation")
)

type alertRequest struct {
	SourceType string            `json:"sourceType"`
	DriverID   string            `json:"driverId"`
	VehicleID  string            `json:"vehicleId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func main() {
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	types := strings.Split(*sourceTypes, ",")
	for i := range types {
		types[i] = strings.TrimSpace(types[i])
	}

	driverIDs := make([]string, *drivers)
	for i := range driverIDs {
		driverIDs[i] = fmt.Sprintf("driver-%03d", i+1)
	}

	log.Printf("Starting alert seeder:")
	log.Printf("  API URL: %s", *apiURL)
	log.Printf("  Alert count: %d", *count)
	log.Printf("  Drivers: %d", *drivers)
	log.Printf("  Source types: %v", types)

	client := &http.Client{Timeout: 10 * time.Second}

	successCount := 0
	failCount := 0

	if *burst > 0 {
		driverID := driverIDs[rand.Intn(len(driverIDs))]
		sourceType := types[rand.Intn(len(types))]
		log.Printf("Sending burst of %d %s alerts for %s", *burst, sourceType, driverID)
		for i := 0; i < *burst; i++ {
			if err := send(client, driverID, sourceType); err != nil {
				log.Printf("Failed to send burst alert: %v", err)
				failCount++
			} else {
				successCount++
			}
		}
	}

	for i := 0; i < *count; i++ {
		driverID := driverIDs[rand.Intn(len(driverIDs))]
		sourceType := types[rand.Intn(len(types))]

		if err := send(client, driverID, sourceType); err != nil {
			log.Printf("Failed to send alert: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%25 == 0 {
				log.Printf("Progress: %d/%d alerts sent", successCount, *count)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Done: %d sent, %d failed", successCount, failCount)
}

func send(client *http.Client, driverID, sourceType string) error {
	req := alertRequest{
		SourceType: sourceType,
		DriverID:   driverID,
		VehicleID:  fmt.Sprintf("vehicle-%03d", rand.Intn(30)+1),
		Metadata:   generateMetadata(sourceType),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, *apiURL+"/api/alerts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if *token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func generateMetadata(sourceType string) map[string]string {
	switch sourceType {
	case "overspeed":
		return map[string]string{
			"speedKmh": fmt.Sprintf("%d", 90+rand.Intn(60)),
			"limitKmh": "80",
			"location": gofakeit.City(),
		}
	case "feedback_negative":
		return map[string]string{
			"rating":  fmt.Sprintf("%d", 1+rand.Intn(2)),
			"comment": gofakeit.Sentence(8),
		}
	case "document_expiry":
		return map[string]string{
			"documentType": gofakeit.RandomString([]string{"license", "insurance", "permit"}),
			"expiryDate":   time.Now().AddDate(0, 0, rand.Intn(14)).Format("2006-01-02"),
		}
	case "safety_incident":
		return map[string]string{
			"description": gofakeit.Sentence(6),
			"reportedBy":  gofakeit.Name(),
		}
	default:
		return nil
	}
}
