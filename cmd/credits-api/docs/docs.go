// Package docs registers the swagger document served at /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/health": {
            "get": {"tags": ["Health"], "summary": "Service health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Store unreachable"}}}
        },
        "/accounts": {
            "post": {"tags": ["Accounts"], "summary": "Create a credit account", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SignupBody"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad request"}}}
        },
        "/accounts/{userId}/balance": {
            "get": {"tags": ["Accounts"], "summary": "Get credit balance", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Account not found"}}}
        },
        "/accounts/{userId}/history": {
            "get": {"tags": ["Accounts"], "summary": "List ledger entries", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "userId", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "cursor", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/accounts/{userId}/statement": {
            "get": {"tags": ["Accounts"], "summary": "Download a ledger statement",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/pdf"],
                "parameters": [
                    {"type": "string", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "enum": ["xlsx", "pdf"], "name": "format", "in": "query"}
                ],
                "responses": {"200": {"description": "File",
                    "headers": {"X-Statement-Truncated": {"type": "string", "description": "true when older entries were omitted"}}}}}
        },
        "/accounts/{userId}/earn": {
            "post": {"tags": ["Accounts"], "summary": "Grant credits", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreditBody"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Key reused or account closed"}}}
        },
        "/accounts/{userId}/refund": {
            "post": {"tags": ["Accounts"], "summary": "Refund credits", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreditBody"}}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/tools/run": {
            "post": {"tags": ["Tools"], "summary": "Charge a tool run", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/services.ToolRunRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "402": {"description": "Insufficient credits"}, "429": {"description": "Rate limited"}}}
        },
        "/referrals/{userId}": {
            "get": {"tags": ["Referrals"], "summary": "Referral stats", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/referrals/{userId}/qr": {
            "get": {"tags": ["Referrals"], "summary": "Referral share QR code", "produces": ["image/png"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "PNG"}}}
        },
        "/referrals/link": {
            "post": {"tags": ["Referrals"], "summary": "Link a user to a referral code", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LinkBody"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid code"}}}
        },
        "/referrals/first-purchase": {
            "post": {"tags": ["Referrals"], "summary": "Reward the referrer for a first purchase", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.FirstPurchaseBody"}}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not referred"}}}
        },
        "/gamification/{userId}": {
            "get": {"tags": ["Gamification"], "summary": "Gamification profile", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/gamification/{userId}/level-up": {
            "post": {"tags": ["Gamification"], "summary": "Convert the time bank for the next pending level", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/missions/{userId}": {
            "get": {"tags": ["Missions"], "summary": "Weekly missions", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/missions/{userId}/{missionId}/progress": {
            "post": {"tags": ["Missions"], "summary": "Add progress to a mission", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "name": "missionId", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ProgressBody"}}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Mission not found"}, "409": {"description": "Mission expired"}}}
        },
        "/admin/accounts/{userId}/adjust": {
            "post": {"tags": ["Admin"], "summary": "Signed manual balance adjustment", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "userId", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreditBody"}}
                ],
                "responses": {"200": {"description": "OK"}, "402": {"description": "Would go negative"}}}
        },
        "/admin/accounts/{userId}": {
            "delete": {"tags": ["Admin"], "summary": "Close an account", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/admin/accounts/{userId}/verify": {
            "get": {"tags": ["Admin"], "summary": "Reconcile an account against its ledger", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/admin/jobs/monthly-reset": {
            "post": {"tags": ["Admin"], "summary": "Run the monthly reset now", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Aborted"}}}
        },
        "/admin/audit": {
            "get": {"tags": ["Admin"], "summary": "List audit records", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "actor_id", "in": "query"},
                    {"type": "string", "name": "action", "in": "query"},
                    {"type": "string", "name": "entity", "in": "query"},
                    {"type": "string", "name": "entity_id", "in": "query"},
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "handlers.SignupBody": {"type": "object", "properties": {
            "user_id": {"type": "string"}, "tier": {"type": "string", "enum": ["free", "beta", "subscriber"]}, "referral_code": {"type": "string"}}},
        "handlers.CreditBody": {"type": "object", "properties": {
            "amount": {"type": "integer"}, "reason": {"type": "string"}, "idempotency_key": {"type": "string"}}},
        "handlers.LinkBody": {"type": "object", "properties": {"user_id": {"type": "string"}, "code": {"type": "string"}}},
        "handlers.FirstPurchaseBody": {"type": "object", "properties": {"referrer_id": {"type": "string"}, "purchaser_id": {"type": "string"}}},
        "handlers.ProgressBody": {"type": "object", "properties": {"amount": {"type": "integer"}}},
        "services.ToolRunRequest": {"type": "object", "properties": {
            "user_id": {"type": "string"}, "tool_id": {"type": "string"}, "tool_name": {"type": "string"},
            "credit_cost": {"type": "integer"}, "minutes_saved": {"type": "integer"}, "idempotency_key": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Kit Credits API",
	Description:      "Credit ledger, referrals and gamification for the kit marketplace",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
