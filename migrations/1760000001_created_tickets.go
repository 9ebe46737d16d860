package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "title", Required: true, Max: 200},
			&core.TextField{Name: "from", Required: true},
			&core.TextField{Name: "to", Required: true},
			&core.TextField{Name: "transportType"},
			&core.JSONField{Name: "perks"},
			&core.TextField{Name: "image"},
			&core.TextField{Name: "vendorName"},
			&core.EmailField{Name: "vendorEmail", Required: true},
			&core.NumberField{Name: "price", Min: ptr(0.0)},
			&core.NumberField{Name: "quantity", Min: ptr(0.0), OnlyInt: true},
			&core.DateField{Name: "departure"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "approved", "rejected"},
			},
			&core.BoolField{Name: "isHiddenByAdmin"},
			&core.BoolField{Name: "advertised"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_vendorEmail", false, "`vendorEmail`", "")
		collection.AddIndex("idx_tickets_visible", false, "`status`, `isHiddenByAdmin`", "")
		collection.AddIndex("idx_tickets_advertised", false, "`advertised`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}

func ptr[T any](v T) *T {
	return &v
}
