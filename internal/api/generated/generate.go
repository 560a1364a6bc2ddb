// Пакет generated — типы и chi-сервер операционного API, сгенерированные
// oapi-codegen из api/openapi.yaml. Файл api.gen.go не редактируется вручную.
package generated

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.5.1 --config=oapi-codegen.yaml ../../../api/openapi.yaml
