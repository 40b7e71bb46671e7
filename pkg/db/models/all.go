package models

// All lists every persisted model in dependency order for schema bootstrapping.
func All() []any {
	return []any{
		&Size{},
		&ProductVariant{},
		&VariantSize{},
		&Stock{},
		&Address{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&RawMaterial{},
		&ManufacturingSpecification{},
		&TaxConfiguration{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
