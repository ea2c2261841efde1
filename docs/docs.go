// Package docs registers the OpenAPI document served under /swagger/*.
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
        "/post": {
            "post": {
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["board"],
                "summary": "Submit a post or command",
                "parameters": [
                    {
                        "description": "Name, message and seed",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/postRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "command applied", "schema": {"$ref": "#/definitions/postResponse"}},
                    "201": {"description": "post created", "schema": {"$ref": "#/definitions/postResponse"}},
                    "400": {"description": "invalid request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "403": {"description": "insufficient permission", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "not found", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "409": {"description": "nothing to do", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "422": {"description": "content rejected", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "500": {"description": "persistence failure", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/api/board": {
            "get": {
                "produces": ["application/json"],
                "tags": ["board"],
                "summary": "Current board, newest post first",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["board"],
                "summary": "Identity and role of the session cookie",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/moderation": {
            "get": {
                "produces": ["application/json"],
                "tags": ["moderation"],
                "summary": "NG words, restriction flags and role membership (moderator+)",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "session required"},
                    "403": {"description": "forbidden"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["board"],
                "summary": "Websocket stream of broadcast events",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    },
    "definitions": {
        "postRequest": {
            "type": "object",
            "required": ["message", "name", "seed"],
            "properties": {
                "name": {"type": "string", "maxLength": 64},
                "message": {"type": "string", "maxLength": 2000},
                "seed": {"type": "string", "maxLength": 256}
            }
        },
        "postResponse": {
            "type": "object",
            "properties": {
                "identity": {"type": "string"},
                "display_name": {"type": "string"},
                "role": {"type": "string"},
                "post": {"type": "object"},
                "command": {"type": "string"},
                "reply": {"type": "string"}
            }
        },
        "errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "submitted": {
                    "type": "object",
                    "properties": {
                        "name": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
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
	Title:            "seedboard API",
	Description:      "Real-time role-gated message board.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
