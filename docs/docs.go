// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/courtbook/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/courts/{id}/availability": {
            "get": {
                "summary": "Court availability on a local day",
                "parameters": [
                    {"type": "integer", "description": "Court ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "YYYY-MM-DD", "name": "date", "in": "query", "required": true},
                    {"type": "string", "description": "IANA zone, defaults to the facility's", "name": "timezone", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/courts/{id}/changes": {
            "get": {
                "produces": ["text/event-stream"],
                "summary": "Stream reservation-set changes of a court (SSE)",
                "parameters": [
                    {"type": "integer", "description": "Court ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {}
            }
        },
        "/courts/{id}/orders": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Reserve a court period (idempotent)",
                "parameters": [
                    {"type": "integer", "description": "Court ID", "name": "id", "in": "path", "required": true},
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.ReserveRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.ReserveResponse"}},
                    "400": {"description": "invalid period / outside opening hours", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "409": {"description": "slot taken / idem in progress", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "429": {"description": "rate limited", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "502": {"description": "payment gateway", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "Get order",
                "parameters": [
                    {"type": "string", "description": "Order ID (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/me/orders": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "List the caller's orders",
                "parameters": [
                    {"type": "integer", "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/orders/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Cancel order and refund",
                "parameters": [
                    {"type": "string", "description": "Order ID (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CancelResponse"}},
                    "409": {"description": "not cancellable / in progress", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "502": {"description": "refund failed", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}/rating": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Rate a played order",
                "parameters": [
                    {"type": "string", "description": "Order ID (uuid)", "name": "id", "in": "path", "required": true},
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.RateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "not played / already rated", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "description": "The reported status is verified against the gateway.",
                "summary": "Payment gateway notification",
                "parameters": [
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.PaymentResultRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "404": {"description": "no order for the intent", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/admin/courts/{id}/inactive-periods": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Declare an inactive period on a court",
                "parameters": [
                    {"type": "integer", "description": "Court ID", "name": "id", "in": "path", "required": true},
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.InactivePeriodRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "overlaps the reservation set", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/admin/courts/{id}/inactive-periods/{pid}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "summary": "Remove an inactive period",
                "parameters": [
                    {"type": "integer", "description": "Court ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Period ID", "name": "pid", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/admin/orders/{id}/played": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Mark an order played",
                "parameters": [
                    {"type": "string", "description": "Order ID (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "not started / not confirmed", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/admin/payments/confirm": {
            "post": {
                "security": [{"BearerAuth": []}],
                "summary": "Confirm a payment without gateway verification",
                "parameters": [
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.ConfirmPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.ConfirmPaymentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httpgin.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "httpgin.ReserveRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "to": {"type": "string"},
                "date": {"type": "string"},
                "hour_from": {"type": "integer"},
                "hour_to": {"type": "integer"},
                "timezone": {"type": "string"}
            }
        },
        "httpgin.ReserveResponse": {
            "type": "object",
            "properties": {
                "order": {"type": "object"},
                "client_token": {"type": "string"}
            }
        },
        "httpgin.CancelResponse": {
            "type": "object",
            "properties": {
                "order": {"type": "object"},
                "refund": {"type": "integer"},
                "refund_id": {"type": "string"}
            }
        },
        "httpgin.RateRequest": {
            "type": "object",
            "required": ["stars"],
            "properties": {
                "stars": {"type": "integer"},
                "feedback": {"type": "string"}
            }
        },
        "httpgin.InactivePeriodRequest": {
            "type": "object",
            "required": ["from", "to"],
            "properties": {
                "from": {"type": "string"},
                "to": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "httpgin.PaymentResultRequest": {
            "type": "object",
            "required": ["payment_intent_id", "status"],
            "properties": {
                "payment_intent_id": {"type": "string"},
                "status": {"type": "string", "enum": ["paid", "failed", "pending"]}
            }
        },
        "httpgin.ConfirmPaymentRequest": {
            "type": "object",
            "required": ["payment_intent_id"],
            "properties": {"payment_intent_id": {"type": "string"}}
        },
        "httpgin.ConfirmPaymentResponse": {
            "type": "object",
            "properties": {"changed": {"type": "boolean"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "CourtBook API",
	Description:      "Court booking and order lifecycle service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
