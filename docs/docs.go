// Package docs registers the OpenAPI description of the webhook API with
// swag so gin-swagger can serve it under /swagger.
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
        "/api/webhooks/chat/{token}": {
            "post": {
                "description": "Stores a chat message or applies a human takeover for the tenant that owns {token}.\nTool-role events are acknowledged and ignored. Redeliveries with the same messageId are deduplicated.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhooks"],
                "summary": "Ingest a chat-provider webhook",
                "operationId": "receiveWebhook",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Webhook source token",
                        "name": "token",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Provider event (contextId, role, message, messageId, contactPhone, ...)",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Message stored (or duplicate)",
                        "schema": {"$ref": "#/definitions/handlers.MessageResponse"}
                    },
                    "400": {
                        "description": "Malformed JSON or missing field",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "404": {
                        "description": "Unknown or inactive token",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "405": {
                        "description": "Method not allowed",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "413": {
                        "description": "Body too large",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "429": {
                        "description": "Rate limited",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "500": {
                        "description": "Store failure",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    }
                }
            },
            "options": {
                "tags": ["Webhooks"],
                "summary": "CORS preflight",
                "operationId": "preflightWebhook",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Webhook source token",
                        "name": "token",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "request_id": {"type": "string", "example": "6f1c2d3e4b5a69788796a5b4c3d2e1f0"},
                "code": {"type": "string", "example": "missing_context_id"},
                "message": {"type": "string", "example": "contextId is required"},
                "details": {"type": "string", "example": "save message: database is locked"}
            }
        },
        "handlers.IgnoredResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "ignored": {"type": "boolean", "example": true},
                "reason": {"type": "string", "example": "tool_role"}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "type": {"type": "string", "example": "message"},
                "conversation_id": {"type": "string", "example": "2f0c8a3e-2b7e-4b8e-9a53-1d7a6f3f1c11"},
                "message_id": {"type": "string", "example": "8d1e3f5a-6c2b-4e7d-9f10-3a4b5c6d7e8f"},
                "duplicate": {"type": "boolean", "example": false}
            }
        },
        "handlers.TakeoverResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "type": {"type": "string", "example": "takeover"},
                "conversation_id": {"type": "string", "example": "2f0c8a3e-2b7e-4b8e-9a53-1d7a6f3f1c11"},
                "applied": {"type": "boolean", "example": true}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "CRM chat webhooks API",
	Description:      "Multi-tenant ingestion endpoint for chat-provider webhooks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
