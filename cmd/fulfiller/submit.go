package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

var (
	submitClient       string
	submitCategory     string
	submitRequirements string
	submitPriority     int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new order",
	Long: `Create a PENDING order for a client.

Requirements are a JSON document passed inline, read from a file, or read
from stdin with "-". They are handed to the agent unchanged.

Categories: WEBSITE, CHATBOT, PHONE_ASSISTANT, TAX_PREP. Other categories are
accepted and routed to GENERAL agents, but have no task plan and will fail.

Examples:
  fulfiller submit --client acme --category WEBSITE --requirements req.json
  fulfiller submit --client acme --category TAX_PREP --requirements '{"year":2025}'
  cat req.json | fulfiller submit --client acme --category CHATBOT --requirements -`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitClient, "client", "", "Client ID (required)")
	submitCmd.Flags().StringVar(&submitCategory, "category", "", "Order category (required)")
	submitCmd.Flags().StringVar(&submitRequirements, "requirements", "", "Requirements JSON, file path, or - for stdin")
	submitCmd.Flags().IntVar(&submitPriority, "priority", 0, "Higher priorities are processed first")
	submitCmd.MarkFlagRequired("client")
	submitCmd.MarkFlagRequired("category")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	requirements, err := readRequirements(submitRequirements, cmd.InOrStdin())
	if err != nil {
		return err
	}

	category := models.Category(strings.ToUpper(submitCategory))
	if !category.Valid() {
		printStatus("⚠", fmt.Sprintf("Unknown category %s: it will be routed to a GENERAL agent", category), color.FgYellow)
	}

	db, _, _, err := openProjectStore()
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC()
	order := &models.Order{
		ID:           uuid.New().String(),
		ClientID:     submitClient,
		Category:     category,
		Requirements: requirements,
		Status:       models.OrderStatusPending,
		Priority:     submitPriority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.CreateOrder(order); err != nil {
		return err
	}

	fmt.Println(order.ID)
	return nil
}

// readRequirements resolves the --requirements value into a JSON document.
// An empty value yields an empty object.
func readRequirements(value string, stdin io.Reader) (json.RawMessage, error) {
	var data []byte
	switch {
	case value == "":
		return json.RawMessage(`{}`), nil
	case value == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read requirements from stdin: %w", err)
		}
		data = b
	case strings.HasPrefix(strings.TrimSpace(value), "{"), strings.HasPrefix(strings.TrimSpace(value), "["):
		data = []byte(value)
	default:
		b, err := os.ReadFile(value)
		if err != nil {
			return nil, fmt.Errorf("read requirements: %w", err)
		}
		data = b
	}

	data = []byte(strings.TrimSpace(string(data)))
	if !json.Valid(data) {
		return nil, fmt.Errorf("requirements are not valid JSON")
	}
	return json.RawMessage(data), nil
}
