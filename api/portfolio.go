package api

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) GetPortfolio(ctx context.Context) (Portfolio, error) {
	var dto portfolioDTO
	if err := c.do(ctx, http.MethodGet, "/portfolio", nil, &dto); err != nil {
		return Portfolio{}, fmt.Errorf("get portfolio: %w", err)
	}
	return dto.normalize(), nil
}

func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var dtos []positionDTO
	if err := c.do(ctx, http.MethodGet, "/positions", nil, &dtos); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	positions := make([]Position, 0, len(dtos))
	for _, dto := range dtos {
		positions = append(positions, dto.normalize())
	}
	return positions, nil
}
