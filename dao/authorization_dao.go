// api/dao/authorization_dao.go
package dao

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	dv_errors "github.com/docuvault/api/errors"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
)

// AuthorizationDAO is the Neo4j-backed AuthorizationSource: read-only access
// to users with their roles and permissions, documents, and user-document
// assignments.
type AuthorizationDAO struct {
	Driver neo4j.Driver
}

func NewAuthorizationDAO(driver neo4j.Driver) *AuthorizationDAO {
	return &AuthorizationDAO{Driver: driver}
}

func (dao *AuthorizationDAO) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return dao.findUser(ctx, "username", username)
}

func (dao *AuthorizationDAO) FindUserByID(ctx context.Context, userID string) (*model.User, error) {
	return dao.findUser(ctx, "id", userID)
}

func (dao *AuthorizationDAO) findUser(ctx context.Context, field, value string) (*model.User, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := fmt.Sprintf(`
        MATCH (u:User {%s: $value})
        OPTIONAL MATCH (u)-[:HAS_ROLE]->(r:Role)
        OPTIONAL MATCH (r)-[:GRANTS]->(p:Permission)
        RETURN u, collect(DISTINCT r) AS roles, collect(DISTINCT {roleID: r.id, permission: p}) AS grants
        `, field)

		result, err := transaction.Run(query, map[string]interface{}{"value": value})
		if err != nil {
			return nil, dv_errors.ErrDatabaseOperation
		}

		if result.Next() {
			record := result.Record()
			userNode, ok := record.Values[0].(neo4j.Node)
			if !ok {
				return nil, dv_errors.ErrUserNotFound
			}
			return buildUser(userNode, record.Values[1], record.Values[2]), nil
		}
		return nil, dv_errors.ErrUserNotFound
	})

	if err != nil {
		if err != dv_errors.ErrUserNotFound {
			logger.Error("Failed to find user", zap.String(field, value), zap.Error(err))
		}
		return nil, err
	}
	return result.(*model.User), nil
}

func buildUser(userNode neo4j.Node, rolesValue, grantsValue interface{}) *model.User {
	user := &model.User{
		ID:       stringProp(userNode.Props, "id"),
		Username: stringProp(userNode.Props, "username"),
		Email:    stringProp(userNode.Props, "email"),
	}

	permsByRole := make(map[string][]model.Permission)
	if grants, ok := grantsValue.([]interface{}); ok {
		for _, g := range grants {
			grant, ok := g.(map[string]interface{})
			if !ok {
				continue
			}
			roleID, _ := grant["roleID"].(string)
			permNode, ok := grant["permission"].(neo4j.Node)
			if !ok {
				continue
			}
			permsByRole[roleID] = append(permsByRole[roleID], model.Permission{
				ID:          stringProp(permNode.Props, "id"),
				Code:        stringProp(permNode.Props, "code"),
				Description: stringProp(permNode.Props, "description"),
			})
		}
	}

	if roles, ok := rolesValue.([]interface{}); ok {
		for _, r := range roles {
			roleNode, ok := r.(neo4j.Node)
			if !ok {
				continue
			}
			role := model.Role{
				ID:          stringProp(roleNode.Props, "id"),
				Name:        stringProp(roleNode.Props, "name"),
				Description: stringProp(roleNode.Props, "description"),
			}
			role.Permissions = permsByRole[role.ID]
			user.Roles = append(user.Roles, role)
		}
	}
	return user
}

func (dao *AuthorizationDAO) FindDocumentByID(ctx context.Context, documentID string) (*model.Document, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (d:Document {id: $id})
        RETURN d
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": documentID})
		if err != nil {
			return nil, dv_errors.ErrDatabaseOperation
		}

		if result.Next() {
			node, ok := result.Record().Values[0].(neo4j.Node)
			if !ok {
				return nil, dv_errors.ErrDocumentNotFound
			}
			return &model.Document{
				ID:      stringProp(node.Props, "id"),
				Title:   stringProp(node.Props, "title"),
				OwnerID: stringProp(node.Props, "ownerID"),
				Status:  stringProp(node.Props, "status"),
				Public:  boolProp(node.Props, "public"),
			}, nil
		}
		return nil, dv_errors.ErrDocumentNotFound
	})

	if err != nil {
		if err != dv_errors.ErrDocumentNotFound {
			logger.Error("Failed to find document", zap.String("documentID", documentID), zap.Error(err))
		}
		return nil, err
	}
	return result.(*model.Document), nil
}

func (dao *AuthorizationDAO) FindDocumentAssignmentsByUserID(ctx context.Context, userID string) ([]model.DocumentAssignment, error) {
	return dao.findAssignments(ctx, `
        MATCH (u:User {id: $value})-[a:ASSIGNED_TO]->(d:Document)
        RETURN u.id AS userID, d.id AS documentID, a.type AS assignmentType
        `, userID)
}

func (dao *AuthorizationDAO) FindDocumentAssignmentsByDocumentID(ctx context.Context, documentID string) ([]model.DocumentAssignment, error) {
	return dao.findAssignments(ctx, `
        MATCH (u:User)-[a:ASSIGNED_TO]->(d:Document {id: $value})
        RETURN u.id AS userID, d.id AS documentID, a.type AS assignmentType
        `, documentID)
}

func (dao *AuthorizationDAO) findAssignments(ctx context.Context, query, value string) ([]model.DocumentAssignment, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		result, err := transaction.Run(query, map[string]interface{}{"value": value})
		if err != nil {
			return nil, dv_errors.ErrDatabaseOperation
		}

		var assignments []model.DocumentAssignment
		for result.Next() {
			record := result.Record()
			userID, _ := record.Get("userID")
			documentID, _ := record.Get("documentID")
			assignmentType, _ := record.Get("assignmentType")
			assignments = append(assignments, model.DocumentAssignment{
				UserID:         asString(userID),
				DocumentID:     asString(documentID),
				AssignmentType: asString(assignmentType),
			})
		}
		return assignments, nil
	})

	if err != nil {
		logger.Error("Failed to find document assignments", zap.String("value", value), zap.Error(err))
		return nil, err
	}
	return result.([]model.DocumentAssignment), nil
}

func (dao *AuthorizationDAO) UserExists(ctx context.Context, userID string) (bool, error) {
	return dao.exists(ctx, "User", userID)
}

func (dao *AuthorizationDAO) DocumentExists(ctx context.Context, documentID string) (bool, error) {
	return dao.exists(ctx, "Document", documentID)
}

func (dao *AuthorizationDAO) exists(ctx context.Context, label, id string) (bool, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := fmt.Sprintf(`
        MATCH (n:%s {id: $id})
        RETURN count(n) > 0 AS exists
        `, label)
		result, err := transaction.Run(query, map[string]interface{}{"id": id})
		if err != nil {
			return false, dv_errors.ErrDatabaseOperation
		}
		if result.Next() {
			exists, _ := result.Record().Get("exists")
			value, _ := exists.(bool)
			return value, nil
		}
		return false, nil
	})

	if err != nil {
		logger.Error("Failed to check existence", zap.String("label", label), zap.String("id", id), zap.Error(err))
		return false, err
	}
	return result.(bool), nil
}

// ListUsernames returns up to limit usernames; limit <= 0 means all.
func (dao *AuthorizationDAO) ListUsernames(ctx context.Context, limit int) ([]string, error) {
	return dao.listStrings(ctx, `
        MATCH (u:User)
        RETURN u.username AS value
        ORDER BY u.username
        `, limit)
}

// ListDocumentIDs returns up to limit document IDs; limit <= 0 means all.
func (dao *AuthorizationDAO) ListDocumentIDs(ctx context.Context, limit int) ([]string, error) {
	return dao.listStrings(ctx, `
        MATCH (d:Document)
        RETURN d.id AS value
        ORDER BY d.id
        `, limit)
}

func (dao *AuthorizationDAO) listStrings(ctx context.Context, query string, limit int) ([]string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	if limit > 0 {
		query += " LIMIT $limit"
	}

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		result, err := transaction.Run(query, map[string]interface{}{"limit": limit})
		if err != nil {
			return nil, dv_errors.ErrDatabaseOperation
		}
		var values []string
		for result.Next() {
			value, _ := result.Record().Get("value")
			values = append(values, asString(value))
		}
		return values, nil
	})

	if err != nil {
		logger.Error("Failed to list values", zap.Error(err))
		return nil, err
	}
	return result.([]string), nil
}

func stringProp(props map[string]interface{}, key string) string {
	value, _ := props[key].(string)
	return value
}

func boolProp(props map[string]interface{}, key string) bool {
	value, _ := props[key].(bool)
	return value
}

func asString(value interface{}) string {
	s, _ := value.(string)
	return s
}
