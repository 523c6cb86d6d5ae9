package client

import (
	"context"

	"github.com/agrisense/agrisense/internal/models"
)

// ListPlots returns all plots.
func (c *Client) ListPlots(ctx context.Context) ([]*models.Plot, error) {
	var plots []*models.Plot
	if err := c.Get(ctx, "/api/plots/", &plots); err != nil {
		return nil, err
	}
	return plots, nil
}

// GetPlot returns a single plot by id.
func (c *Client) GetPlot(ctx context.Context, id string) (*models.Plot, error) {
	var plot models.Plot
	if err := c.Get(ctx, "/api/plots/"+id+"/", &plot); err != nil {
		return nil, err
	}
	return &plot, nil
}

// CreatePlot registers a new plot.
func (c *Client) CreatePlot(ctx context.Context, name, cropVariety string) (*models.Plot, error) {
	body := map[string]string{
		"name":         name,
		"crop_variety": cropVariety,
	}
	var plot models.Plot
	if err := c.Post(ctx, "/api/plots/", body, &plot); err != nil {
		return nil, err
	}
	return &plot, nil
}
