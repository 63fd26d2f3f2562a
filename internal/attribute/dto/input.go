package dto

type CreateAttributeInput struct {
	Name            string   `json:"name" validate:"required,max=128"`
	Slug            string   `json:"slug" validate:"required,max=128"`
	ValueType       string   `json:"value_type" validate:"required"`
	Required        bool     `json:"required"`
	ProductClassIDs []string `json:"product_class_ids" validate:"unique,dive,uuid"`
}

type UpdateAttributeInput struct {
	ID        string `json:"id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=128"`
	Slug      string `json:"slug" validate:"required,max=128"`
	ValueType string `json:"value_type" validate:"required"`
	Required  bool   `json:"required"`
}

type AttributeIDInput struct {
	ID string `json:"id" validate:"required,uuid"`
}

type AssignInput struct {
	AttributeID     string   `json:"attribute_id" validate:"required,uuid"`
	ProductClassIDs []string `json:"product_class_ids" validate:"required,min=1,unique,dive,uuid"`
}

type UnassignInput struct {
	AttributeID    string `json:"attribute_id" validate:"required,uuid"`
	ProductClassID string `json:"product_class_id" validate:"required,uuid"`
}
