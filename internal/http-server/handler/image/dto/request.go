package dto

type ImageIDRequest struct {
	ID string `validate:"required,uuid"`
}

type ListRequest struct {
	Page     int `validate:"gte=0"`
	PageSize int `validate:"gte=0"`
}

type UploadRequest struct {
	Name string `validate:"max=255"`
}

type UpdateRequest struct {
	ID   string `validate:"required,uuid"`
	Name string `validate:"max=255"`
}
