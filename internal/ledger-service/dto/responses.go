package dto

// ErrorResponse é o corpo de toda resposta de erro da API.
// Error carrega o código estável (ex: "not_found"), Message o detalhe.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
