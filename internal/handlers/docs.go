package handlers

import (
	"encoding/json"
	"net/http"
)

const apiTitle = "EcoVision Climate API"

type object = map[string]interface{}

func queryParam(name, description string, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

var (
	filterParams = []object{
		queryParam("location_id", "Filter by location id", object{"type": "integer"}),
		queryParam("start_date", "Inclusive start date (YYYY-MM-DD)", object{"type": "string", "format": "date"}),
		queryParam("end_date", "Inclusive end date (YYYY-MM-DD)", object{"type": "string", "format": "date"}),
		queryParam("metric", "Metric name, case-insensitive", object{"type": "string"}),
		queryParam("quality_threshold", "Minimum quality label", object{
			"type": "string",
			"enum": []string{"poor", "questionable", "good", "excellent"},
		}),
	}
	pageParams = []object{
		queryParam("page", "Page number, 1-based (default: 1)", object{"type": "integer", "default": 1}),
		queryParam("limit", "Items per page (default: 10, max: 1000)", object{"type": "integer", "default": 10, "maximum": 1000}),
	}
)

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func nullableNumber() object {
	return object{"type": "number", "nullable": true}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func errorResponses(codes ...string) object {
	out := object{}
	for _, code := range codes {
		out[code] = jsonResponse("Error", ref("Error"))
	}
	return out
}

func getOperation(summary string, params []object, ok object, errs ...string) object {
	responses := errorResponses(errs...)
	responses["200"] = ok
	op := object{"summary": summary, "responses": responses}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return object{"get": op}
}

func postOperation(summary, schema string, errs ...string) object {
	responses := errorResponses(append([]string{"400", "500"}, errs...)...)
	responses["201"] = jsonResponse("Created", ref(schema))
	return object{"post": object{
		"summary":     summary,
		"requestBody": object{"required": true, "content": object{"application/json": object{"schema": ref(schema)}}},
		"responses":   responses,
	}}
}

func paged(item string) object {
	return object{
		"type": "object",
		"properties": object{
			"data": object{"type": "array", "items": ref(item)},
			"meta": ref("PaginationMeta"),
		},
	}
}

func listOf(item string) object {
	return object{
		"type":       "object",
		"properties": object{"data": object{"type": "array", "items": ref(item)}},
	}
}

func schemas() object {
	return object{
		"Error": object{"type": "object", "properties": object{
			"error":   object{"type": "string"},
			"message": object{"type": "string"},
			"code":    object{"type": "integer"},
		}},
		"PaginationMeta": object{"type": "object", "properties": object{
			"count":    object{"type": "integer"},
			"page":     object{"type": "integer"},
			"per_page": object{"type": "integer"},
		}},
		"Location": object{"type": "object", "required": []string{"name"}, "properties": object{
			"id":        object{"type": "integer", "readOnly": true},
			"name":      object{"type": "string"},
			"country":   object{"type": "string"},
			"latitude":  object{"type": "number"},
			"longitude": object{"type": "number"},
			"region":    object{"type": "string"},
		}},
		"Metric": object{"type": "object", "required": []string{"name", "unit"}, "properties": object{
			"id":           object{"type": "integer", "readOnly": true},
			"name":         object{"type": "string"},
			"display_name": object{"type": "string"},
			"unit":         object{"type": "string"},
			"description":  object{"type": "string"},
		}},
		"Observation": object{"type": "object", "required": []string{"location_id", "metric_id", "date", "value", "quality"}, "properties": object{
			"id":             object{"type": "integer", "readOnly": true},
			"location_id":    object{"type": "integer"},
			"metric_id":      object{"type": "integer"},
			"date":           object{"type": "string", "format": "date"},
			"value":          object{"type": "number"},
			"quality":        object{"type": "string", "enum": []string{"poor", "questionable", "good", "excellent"}},
			"quality_weight": object{"type": "number", "readOnly": true},
		}},
		"ClimateRecord": object{"type": "object", "properties": object{
			"id":             object{"type": "integer"},
			"location_id":    object{"type": "integer"},
			"location_name":  object{"type": "string"},
			"latitude":       object{"type": "number"},
			"longitude":      object{"type": "number"},
			"metric_id":      object{"type": "integer"},
			"metric_name":    object{"type": "string"},
			"metric":         object{"type": "string"},
			"unit":           object{"type": "string"},
			"date":           object{"type": "string", "format": "date"},
			"value":          object{"type": "number"},
			"quality":        object{"type": "string"},
			"quality_weight": object{"type": "number"},
		}},
		"SummaryResult": object{"type": "object", "properties": object{
			"name":         object{"type": "string"},
			"min":          nullableNumber(),
			"max":          nullableNumber(),
			"avg":          nullableNumber(),
			"weighted_avg": nullableNumber(),
			"unit":         object{"type": "string"},
			"count":        object{"type": "integer"},
			"quality_distribution": object{"type": "object", "nullable": true, "properties": object{
				"poor":         object{"type": "number"},
				"questionable": object{"type": "number"},
				"good":         object{"type": "number"},
				"excellent":    object{"type": "number"},
			}},
		}},
		"TrendResult": object{"type": "object", "properties": object{
			"metric_name":  object{"type": "string"},
			"unit":         object{"type": "string"},
			"observations": object{"type": "integer"},
			"direction":    object{"type": "string", "nullable": true, "enum": []string{"increasing", "decreasing"}},
			"rate":         nullableNumber(),
			"confidence":   nullableNumber(),
			"anomalies": object{"type": "array", "nullable": true, "items": object{"type": "object", "properties": object{
				"date":      object{"type": "string", "format": "date"},
				"value":     object{"type": "number"},
				"deviation": object{"type": "number"},
				"quality":   object{"type": "string"},
			}}},
			"seasonality": object{"type": "object", "nullable": true, "properties": object{
				"detected":   object{"type": "boolean"},
				"period":     object{"type": "string"},
				"confidence": object{"type": "number"},
				"pattern": object{"type": "object", "additionalProperties": object{"type": "object", "properties": object{
					"avg":   object{"type": "number"},
					"trend": object{"type": "string"},
				}}},
			}},
			"unavailable": object{"type": "array", "items": object{"type": "string"}},
		}},
	}
}

func withPaging(params []object) []object {
	out := make([]object, 0, len(params)+len(pageParams))
	out = append(out, params...)
	return append(out, pageParams...)
}

// OpenAPISpec returns the OpenAPI 3.0 document for the climate API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       apiTitle,
			"description": "Climate observations with quality-weighted summaries and trend analysis",
			"version":     "1.0.0",
		},
		"paths": object{
			pathClimate: getOperation("List climate observations", withPaging(filterParams),
				jsonResponse("Paged climate records", paged("ClimateRecord")), "400", "500"),
			pathSummary: getOperation("Quality-weighted summary per metric", withPaging(filterParams),
				jsonResponse("Paged metric summaries", paged("SummaryResult")), "400", "500"),
			pathTrends: getOperation("Trend, anomaly and seasonality analysis per metric", filterParams,
				jsonResponse("Trend results keyed by metric name", object{
					"type":                 "object",
					"additionalProperties": ref("TrendResult"),
				}), "400", "500"),
			pathLocations:      getOperation("List locations", nil, jsonResponse("Locations", listOf("Location")), "500"),
			pathMetrics:        getOperation("List metrics", nil, jsonResponse("Metrics", listOf("Metric")), "500"),
			pathCreateLocation: postOperation("Create a location", "Location"),
			pathCreateMetric:   postOperation("Create a metric", "Metric", "409"),
			pathCreateClimate:  postOperation("Record a climate observation", "Observation", "404"),
			pathHealth: getOperation("Health check", nil, jsonResponse("API and database are reachable", object{
				"type": "object",
				"properties": object{
					"status":    object{"type": "string"},
					"timestamp": object{"type": "string", "format": "date-time"},
				},
			})),
			"/metrics": object{"get": object{
				"summary": "Prometheus metrics",
				"responses": object{"200": object{
					"description": "Prometheus metrics in text format",
					"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
				}},
			}},
		},
		"components": object{"schemas": schemas()},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(spec)
}
