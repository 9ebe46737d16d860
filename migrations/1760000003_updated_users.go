package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			collection = core.NewAuthCollection("users")
		}

		if collection.Fields.GetByName("name") == nil {
			collection.Fields.Add(&core.TextField{Name: "name", Max: 255})
		}

		collection.Fields.Add(
			&core.TextField{Name: "photoURL"},
			&core.SelectField{
				Name:      "role",
				MaxSelect: 1,
				Values:    []string{"user", "vendor", "admin", "fraud"},
			},
		)

		collection.AddIndex("idx_users_role", false, "`role`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection.Fields.RemoveByName("photoURL")
		collection.Fields.RemoveByName("role")
		collection.RemoveIndex("idx_users_role")

		return app.Save(collection)
	})
}
