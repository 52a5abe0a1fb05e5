package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
	"github.com/marshallshelly/databridge/pkg/schema"
)

// CreatedResult is the backend's answer to a create.
type CreatedResult struct {
	ID      int64
	Message string
}

// UpdatedResult is the backend's answer to an update.
type UpdatedResult struct {
	Message string
}

// Resource is the service for one entity type. It maps each operation to one
// request and returns failures to the caller as-is.
type Resource[T model.Entity] struct {
	client *Client
	routes Routes
	table  *schema.TableMetadata
}

// NewResource creates a service for T using routes.
func NewResource[T model.Entity](c *Client, routes Routes) *Resource[T] {
	return &Resource[T]{
		client: c,
		routes: routes,
		table:  registry.For[T](),
	}
}

// NewProductService returns the product service.
func NewProductService(c *Client) *Resource[model.Product] {
	return NewResource[model.Product](c, ProductRoutes)
}

// NewEmployeeService returns the employee service.
func NewEmployeeService(c *Client) *Resource[model.Employee] {
	return NewResource[model.Employee](c, EmployeeRoutes)
}

// NewMemberService returns the member service.
func NewMemberService(c *Client) *Resource[model.Member] {
	return NewResource[model.Member](c, MemberRoutes)
}

// Routes returns the endpoint templates of the resource.
func (r *Resource[T]) Routes() Routes {
	return r.routes
}

// List fetches every record.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	body, err := r.client.doJSON(ctx, http.MethodGet, r.routes.List, r.routes.List, nil)
	if err != nil {
		return nil, err
	}

	items := []T{}
	if len(body) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", r.table.Name, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Create sends the draft's non-id fields.
func (r *Resource[T]) Create(ctx context.Context, draft T) (CreatedResult, error) {
	if err := r.table.SetKey(&draft, 0); err != nil {
		return CreatedResult{}, err
	}
	body, err := r.client.doJSON(ctx, http.MethodPost, r.routes.Create, r.routes.Create, draft)
	if err != nil {
		return CreatedResult{}, err
	}

	result := CreatedResult{Message: gjson.GetBytes(body, "message").String()}
	keyName := r.table.KeyColumn().JSONName
	if id := gjson.GetBytes(body, keyName); id.Exists() {
		result.ID = id.Int()
	} else {
		result.ID = gjson.GetBytes(body, "id").Int()
	}
	return result, nil
}

// Update replaces the record addressed by id.
func (r *Resource[T]) Update(ctx context.Context, id int64, draft T) (UpdatedResult, error) {
	if id == 0 {
		return UpdatedResult{}, ErrNotPersisted
	}
	path := r.routes.Item(r.routes.Update, id)
	body, err := r.client.doJSON(ctx, http.MethodPut, r.routes.Update, path, draft)
	if err != nil {
		return UpdatedResult{}, err
	}
	return UpdatedResult{Message: gjson.GetBytes(body, "message").String()}, nil
}

// Delete removes the record addressed by id.
func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	if id == 0 {
		return ErrNotPersisted
	}
	path := r.routes.Item(r.routes.Delete, id)
	_, err := r.client.doJSON(ctx, http.MethodDelete, r.routes.Delete, path, nil)
	return err
}
