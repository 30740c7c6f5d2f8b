package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ApplyTrack Automation API",
        "description": "Rule engine that advances job applications through the hiring pipeline",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Automation", "description": "Rule configuration, previews and run history"}
    ],
    "paths": {
        "/automation/rules": {
            "get": {
                "tags": ["Automation"],
                "summary": "Get automation rules",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Automation"],
                "summary": "Update automation rules",
                "description": "Omitted sections keep their current values.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RuleConfig"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/preview": {
            "get": {
                "tags": ["Automation"],
                "summary": "Rule match counts",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/run": {
            "post": {
                "tags": ["Automation"],
                "summary": "Trigger an automation run",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Automation disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/evaluate": {
            "post": {
                "tags": ["Automation"],
                "summary": "Dry-run the rule engine",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EvaluateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/applications/{id}/inactivity": {
            "get": {
                "tags": ["Automation"],
                "summary": "Follow-up reminder state",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/runs": {
            "get": {
                "tags": ["Automation"],
                "summary": "Automation run history",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "array", "items": {"type": "string", "enum": ["RUNNING", "COMPLETED", "PARTIAL", "FAILED", "CANCELLED"]}, "collectionFormat": "multi"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/runs/{id}": {
            "get": {
                "tags": ["Automation"],
                "summary": "Automation run detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/automation/runs/{id}/export": {
            "get": {
                "tags": ["Automation"],
                "summary": "Download an automation run log",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "DaysRule": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "days": {"type": "integer", "minimum": 0},
                "applyTo": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ArchiveRule": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "days": {"type": "integer", "minimum": 0}
            }
        },
        "ReminderRule": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "days": {"type": "integer", "minimum": 0}
            }
        },
        "ToggleRule": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"}
            }
        },
        "InterviewCountRule": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "interviewCount": {"type": "integer", "minimum": 1}
            }
        },
        "RuleConfig": {
            "type": "object",
            "properties": {
                "autoRejectDays": {"$ref": "#/definitions/DaysRule"},
                "autoArchiveRejected": {"$ref": "#/definitions/ArchiveRule"},
                "autoMoveToInterview": {"$ref": "#/definitions/ToggleRule"},
                "autoMoveToPendingDecision": {"$ref": "#/definitions/InterviewCountRule"},
                "autoRejectNoResponse": {"$ref": "#/definitions/DaysRule"},
                "inactiveReminder": {"$ref": "#/definitions/ReminderRule"}
            }
        },
        "Interview": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["scheduled", "completed", "cancelled"]},
                "type": {"type": "string"},
                "date": {"type": "string"}
            }
        },
        "StatusHistoryEntry": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "date": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "Application": {
            "type": "object",
            "required": ["id", "status"],
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["wishlist", "applied", "interview", "pending_decision", "offer", "rejected", "archived"]},
                "statusHistory": {"type": "array", "items": {"$ref": "#/definitions/StatusHistoryEntry"}},
                "interviews": {"type": "array", "items": {"$ref": "#/definitions/Interview"}},
                "createdAt": {"type": "string"},
                "appliedDate": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "EvaluateRequest": {
            "type": "object",
            "properties": {
                "applications": {"type": "array", "items": {"$ref": "#/definitions/Application"}},
                "config": {"$ref": "#/definitions/RuleConfig"},
                "now": {"type": "string", "format": "date-time"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
