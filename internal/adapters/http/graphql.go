package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	organizationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Organization",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"slug":     &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"url":      &graphql.Field{Type: graphql.String},
			"timezone": &graphql.Field{Type: graphql.String},
		},
	})

	eventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Event",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"organization_id": &graphql.Field{Type: graphql.String},
			"venue_id":        &graphql.Field{Type: graphql.String},
			"title":           &graphql.Field{Type: graphql.String},
			"description":     &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: geoPointType},
			"starts_at":       &graphql.Field{Type: graphql.String},
			"ends_at":         &graphql.Field{Type: graphql.String},
			"capacity":        &graphql.Field{Type: graphql.Int},
			"published":       &graphql.Field{Type: graphql.Boolean},
			"distance":        &graphql.Field{Type: graphql.Float},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapMarker",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.String},
			"point": &graphql.Field{Type: geoPointType},
		},
	})

	renderItemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RenderItem",
		Fields: graphql.Fields{
			"point":   &graphql.Field{Type: geoPointType},
			"markers": &graphql.Field{Type: graphql.NewList(markerType)},
		},
	})

	passType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pass",
		Fields: graphql.Fields{
			"uid":           &graphql.Field{Type: graphql.String},
			"kid":           &graphql.Field{Type: graphql.String},
			"issuedAt":      &graphql.Field{Type: graphql.Int},
			"lastScannedAt": &graphql.Field{Type: graphql.Int},
			"active":        &graphql.Field{Type: graphql.Boolean},
			"version":       &graphql.Field{Type: graphql.Int},
			"status": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if pp, ok := p.Source.(*domain.Pass); ok {
						return pass.StatusText(*pp), nil
					}
					return nil, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"organizations": &graphql.Field{
				Type:        graphql.NewList(organizationType),
				Description: "List all organizations",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Organizations.List(p.Context)
				},
			},
			"eventsNearby": &graphql.Field{
				Type:        graphql.NewList(eventType),
				Description: "Find published events near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Events.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"searchEvents": &graphql.Field{
				Type:        graphql.NewList(eventType),
				Description: "Search events by title (fuzzy matching)",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					limit := p.Args["limit"].(int)
					return deps.Events.Search(p.Context, q, limit)
				},
			},
			"event": &graphql.Field{
				Type:        eventType,
				Description: "Get an event by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Events.GetByID(p.Context, id)
				},
			},
			"mapMarkers": &graphql.Field{
				Type:        graphql.NewList(renderItemType),
				Description: "Clustered markers for a map viewport at a zoom level",
				Args: graphql.FieldConfigArgument{
					"min_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bounds := domain.Bounds{
						MinLat: p.Args["min_lat"].(float64),
						MinLon: p.Args["min_lon"].(float64),
						MaxLat: p.Args["max_lat"].(float64),
						MaxLon: p.Args["max_lon"].(float64),
					}
					zoom := p.Args["zoom"].(float64)
					return deps.Map.Markers(p.Context, bounds, zoom)
				},
			},
			"pass": &graphql.Field{
				Type:        passType,
				Description: "Get a user's pass by uid",
				Args: graphql.FieldConfigArgument{
					"uid": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					uid := p.Args["uid"].(string)
					return deps.Passes.GetByUID(p.Context, uid)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
