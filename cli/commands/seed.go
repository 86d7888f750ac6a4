package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/cli/internal/ui"
	"github.com/satishbabariya/commerce-client/runtime/client"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill an empty database with demo data",
	Long: `Create a small demo shop in one transaction: users, products, orders
with shipments and tracking events, a wallet with payments, and a support
ticket. A database that already holds the demo users is left unchanged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cl.Disconnect(cmd.Context())

		spinner, _ := ui.PrintSpinner("Seeding database...")
		created, err := seed(cmd.Context(), cl)
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}
		if created == 0 {
			ui.PrintWarning("Database already seeded")
			return nil
		}
		ui.PrintSuccess("Seeded %d orders", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seed creates the demo data and returns the number of orders created.
func seed(ctx context.Context, cl *client.Client) (int, error) {
	existing, err := cl.User().FindUnique(ctx, types.FindUniqueArgs{Where: types.Where{"email": "ann@example.com"}})
	if err != nil || existing != nil {
		return 0, err
	}

	return client.Transact(ctx, cl, func(tx *client.Tx) (int, error) {
		users, err := tx.User().CreateManyAndReturn(ctx, types.CreateManyArgs{Data: []types.Data{
			{"name": "Ann", "email": "ann@example.com", "premiumStatus": true},
			{"name": "Bob", "email": "bob@example.com"},
		}})
		if err != nil {
			return 0, err
		}
		products, err := tx.Product().CreateManyAndReturn(ctx, types.CreateManyArgs{Data: []types.Data{
			{"name": "Widget", "category": "tools", "price": "9.99"},
			{"name": "Gadget", "category": "tools", "price": "24.50"},
			{"name": "Bolt", "category": "hardware", "price": "0.35"},
		}})
		if err != nil {
			return 0, err
		}
		warehouse, err := tx.Warehouse().Create(ctx, types.CreateArgs{
			Data: types.Data{"location": "Rotterdam", "managerName": "Ines"},
		})
		if err != nil {
			return 0, err
		}

		now := time.Now().UTC()
		var orders []types.Row
		for i, line := range []struct {
			user, product types.Row
			status        string
		}{
			{users[0], products[0], "shipped"},
			{users[0], products[1], "pending"},
			{users[1], products[2], "shipped"},
		} {
			data := types.Data{
				"user":    map[string]any{"connect": map[string]any{"id": line.user["id"]}},
				"product": map[string]any{"connect": map[string]any{"id": line.product["id"]}},
				"status":  line.status,
			}
			if line.status == "shipped" {
				data["shipments"] = map[string]any{"create": map[string]any{
					"trackingNumber":   "TRK-" + string(rune('A'+i)) + "-0001",
					"estimatedArrival": now.Add(72 * time.Hour),
					"trackingEvents": map[string]any{"create": []any{
						map[string]any{
							"statusUpdate": "received at warehouse",
							"warehouse":    map[string]any{"connect": map[string]any{"id": warehouse["id"]}},
						},
					}},
				}}
			}
			order, err := tx.Order().Create(ctx, types.CreateArgs{Data: data})
			if err != nil {
				return 0, err
			}
			orders = append(orders, order)
		}

		wallet, err := tx.Wallet().Create(ctx, types.CreateArgs{Data: types.Data{
			"userId":   users[0]["id"],
			"balance":  "100.00",
			"currency": "EUR",
			"paymentMethods": map[string]any{"create": map[string]any{
				"provider":   "visa",
				"expiryDate": now.AddDate(2, 0, 0),
			}},
		}})
		if err != nil {
			return 0, err
		}
		for _, order := range orders[:2] {
			product := products[0]
			if order["productId"] == products[1]["id"] {
				product = products[1]
			}
			if _, err := tx.TransactionModel().Create(ctx, types.CreateArgs{Data: types.Data{
				"wallet": map[string]any{"connect": map[string]any{"id": wallet["id"]}},
				"order":  map[string]any{"connect": map[string]any{"id": order["id"]}},
				"amount": product["price"],
				"type":   "payment",
			}}); err != nil {
				return 0, err
			}
			if _, err := tx.Wallet().Update(ctx, types.UpdateArgs{
				Where: types.Where{"id": wallet["id"]},
				Data:  types.Data{"balance": map[string]any{"decrement": product["price"]}},
			}); err != nil {
				return 0, err
			}
		}

		_, err = tx.Ticket().Create(ctx, types.CreateArgs{Data: types.Data{
			"userId":      users[1]["id"],
			"referenceId": orders[2]["id"],
			"issueType":   "delivery",
			"messages": map[string]any{"create": []any{
				map[string]any{"sender": "Bob", "content": "Where is my parcel?"},
				map[string]any{"sender": "support", "content": "It arrives in three days."},
			}},
			"surveys": map[string]any{"create": map[string]any{"rating": 4, "comments": nil}},
		}})
		if err != nil {
			return 0, err
		}
		return len(orders), nil
	})
}
