package storage

import "context"

// UploadInput carrega um blob clínico a ser persistido: foto de lesão ou
// termo de consentimento digitalizado. Key é o caminho do objeto no bucket
// (ex.: lesoes/<atendimento>/<arquivo>).
type UploadInput struct {
	Key         string
	Body        []byte
	ContentType string
}

// UploadResult devolve a URL pública gravada no prontuário.
type UploadResult struct {
	URL string
}

// Uploader abstrai o backend de armazenamento dos anexos clínicos.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}
