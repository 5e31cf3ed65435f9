// Package docs swagger 文档定义，随接口变更手工维护
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API支持",
            "url": "http://www.swagger.io/support",
            "email": "support@swagger.io"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/courses/records": {
            "post": {
                "description": "批量入库训练 schema 的章节记录，重复 (student, course, chapter) 后写覆盖；任何无效行中止整批",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["课程"],
                "summary": "入库章节记录",
                "parameters": [
                    {
                        "description": "章节记录",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/controller.IngestRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/util.Response"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/courses/{courseId}/high-risk": {
            "get": {
                "description": "课程最近一次评分批次中风险等级为 HIGH 的学生",
                "produces": ["application/json"],
                "tags": ["课程"],
                "summary": "高风险学生",
                "parameters": [
                    {"type": "string", "description": "课程ID", "name": "courseId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/courses/{courseId}/insights": {
            "get": {
                "description": "课程的章节辍学率、难点章节、关键完成因素与高风险学生；无记录课程返回空结果",
                "produces": ["application/json"],
                "tags": ["课程"],
                "summary": "课程洞察",
                "parameters": [
                    {"type": "string", "description": "课程ID", "name": "courseId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "检查服务状态",
                "produces": ["application/json"],
                "tags": ["系统"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/predict": {
            "post": {
                "description": "上传 CSV(列: student_id, course_id, chapter_order, time_spent_min, score_percent[, completed])，返回每个学生的完成概率、风险等级及批内课程洞察",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["预测"],
                "summary": "批量预测",
                "parameters": [
                    {"type": "file", "description": "章节观测 CSV", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/predict-single": {
            "post": {
                "description": "对单个学生的章节观测做即时预测，风险等级按固定阈值判定",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["预测"],
                "summary": "单学生预测",
                "parameters": [
                    {
                        "description": "学生章节观测",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/controller.SingleStudentRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        }
    },
    "definitions": {
        "controller.IngestRequest": {
            "type": "object",
            "required": ["records"],
            "properties": {
                "records": {
                    "type": "array",
                    "items": {"type": "object", "additionalProperties": true}
                }
            }
        },
        "controller.SingleStudentRequest": {
            "type": "object",
            "required": ["course_id", "student_id"],
            "properties": {
                "chapter_order": {"type": "integer"},
                "course_id": {"type": "string"},
                "score_percent": {"type": "number"},
                "student_id": {"type": "string"},
                "time_spent_min": {"type": "number"}
            }
        },
        "util.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Learning Intelligence API",
	Description:      "学习平台的完课预测与辍学风险分析服务。",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
