package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("transactions")

		collection.Fields.Add(
			&core.TextField{Name: "transactionId", Required: true},
			&core.NumberField{Name: "amount", Min: ptr(0.0)},
			&core.TextField{Name: "currency", Max: 3},
			&core.TextField{Name: "ticketTitle"},
			&core.TextField{Name: "ticketId"},
			&core.TextField{Name: "bookingId"},
			&core.EmailField{Name: "buyerEmail"},
			&core.DateField{Name: "paymentDate"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		// one ledger entry per payment intent
		collection.AddIndex("idx_transactions_transactionId", true, "`transactionId`", "")
		collection.AddIndex("idx_transactions_buyerEmail", false, "`buyerEmail`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("transactions")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
