package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("bookings")

		collection.Fields.Add(
			&core.TextField{Name: "ticketId", Required: true},
			&core.TextField{Name: "ticketTitle"},
			&core.TextField{Name: "buyerName"},
			&core.EmailField{Name: "buyerEmail", Required: true},
			&core.EmailField{Name: "vendorEmail"},
			&core.NumberField{Name: "quantity", Min: ptr(1.0), OnlyInt: true},
			&core.NumberField{Name: "totalPrice", Min: ptr(0.0)},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "accepted", "rejected", "paid"},
			},
			&core.TextField{Name: "transactionId"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_bookings_buyerEmail", false, "`buyerEmail`", "")
		collection.AddIndex("idx_bookings_vendorEmail", false, "`vendorEmail`", "")
		collection.AddIndex("idx_bookings_ticketId", false, "`ticketId`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
