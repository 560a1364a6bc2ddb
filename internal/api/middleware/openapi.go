// openapi.go — валидация запросов операционного API по OpenAPI-документу
// (kin-openapi). Проверяет параметры пути, тело запроса и security
// операции: scopes из security сверяются со scopes JWT.
// Должен использоваться после JWTAuth.Middleware().
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/arturkryukov/artsore/staging-service/internal/api/errors"
)

// errMissingScope — в токене нет scope, требуемого операцией.
var errMissingScope = errors.New("недостаточно прав")

// OpenAPIValidator — middleware проверки запросов по документу swagger.
// Запросы к путям, которых нет в документе, пропускаются без проверки.
type OpenAPIValidator struct {
	router  routers.Router
	options *openapi3filter.Options
	logger  *slog.Logger
}

// NewOpenAPIValidator создаёт middleware по загруженному документу.
// Документ валидируется при построении маршрутизатора.
func NewOpenAPIValidator(swagger *openapi3.T, logger *slog.Logger) (*OpenAPIValidator, error) {
	router, err := legacy.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("маршрутизатор OpenAPI: %w", err)
	}
	return &OpenAPIValidator{
		router: router,
		options: &openapi3filter.Options{
			AuthenticationFunc: authenticate,
		},
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Нарушение security — 403, прочие ошибки валидации — 400.
func (v *OpenAPIValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				// 404/405 отдаёт chi
				next.ServeHTTP(w, r)
				return
			}

			err = openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    v.options,
			})

			var secErr *openapi3filter.SecurityRequirementsError
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.As(err, &secErr):
				apierrors.Forbidden(w, "Недостаточно прав: требуется scope "+requiredScopes(route))
			default:
				v.logger.Debug("Запрос не прошёл валидацию",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
			}
		})
	}
}

// authenticate проверяет, что токен содержит все scopes требования.
func authenticate(ctx context.Context, in *openapi3filter.AuthenticationInput) error {
	if _, ok := AuthFromContext(ctx); !ok {
		return errors.New("запрос без аутентификации")
	}
	granted := ScopesFromContext(ctx)
	for _, scope := range in.Scopes {
		if !slices.Contains(granted, scope) {
			return fmt.Errorf("%w: %s", errMissingScope, scope)
		}
	}
	return nil
}

func requiredScopes(route *routers.Route) string {
	var scopes []string
	if route.Operation.Security != nil {
		for _, req := range *route.Operation.Security {
			for _, s := range req {
				scopes = append(scopes, s...)
			}
		}
	}
	return strings.Join(scopes, ", ")
}

// validationMessage сокращает ошибку kin-openapi до причины без дампа схемы.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			field := strings.Join(schemaErr.JSONPointer(), ".")
			if field != "" {
				return fmt.Sprintf("Некорректное поле %s: %s", field, schemaErr.Reason)
			}
			return "Некорректное тело запроса: " + schemaErr.Reason
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("Некорректный параметр %s: %v", reqErr.Parameter.Name, reqErr.Err)
		}
		return "Некорректный запрос: " + reqErr.Error()
	}
	return "Некорректный запрос: " + err.Error()
}
