package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("feedback")

		collection.Fields.Add(
			&core.TextField{Name: "name"},
			&core.EmailField{Name: "email"},
			&core.TextField{Name: "message", Required: true},
			&core.NumberField{Name: "rating", Min: ptr(0.0), Max: ptr(5.0), OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("feedback")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
