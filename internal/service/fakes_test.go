package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/repository"
)

// memoryStore backs the repository interfaces with maps guarded by a single
// mutex, so uniqueness violations surface deterministically even under
// concurrent access.
type memoryStore struct {
	mu          sync.Mutex
	users       map[uint]models.User
	groups      map[uint]models.Group
	members     []models.GroupMember
	assignments map[uint]models.Assignment
	submissions map[uint]models.Submission
	nextID      uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[uint]models.User),
		groups:      make(map[uint]models.Group),
		assignments: make(map[uint]models.Assignment),
		submissions: make(map[uint]models.Submission),
		nextID:      1,
	}
}

func (m *memoryStore) allocateID() uint {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryStore) addUser(username, role string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := models.User{ID: m.allocateID(), Username: username, Role: role, CreatedAt: time.Now()}
	m.users[user.ID] = user
	return user
}

func (m *memoryStore) addGroup(name, joinCode string, teacherID uint) models.Group {
	m.mu.Lock()
	defer m.mu.Unlock()

	group := models.Group{ID: m.allocateID(), Name: name, JoinCode: joinCode, TeacherID: teacherID, CreatedAt: time.Now()}
	m.groups[group.ID] = group
	return group
}

func (m *memoryStore) addMembership(groupID, studentID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.members = append(m.members, models.GroupMember{ID: m.allocateID(), GroupID: groupID, StudentID: studentID, CreatedAt: time.Now()})
}

func (m *memoryStore) addAssignment(groupID uint, title string, deadline time.Time) models.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()

	assignment := models.Assignment{ID: m.allocateID(), GroupID: groupID, Title: title, Deadline: deadline, CreatedAt: time.Now()}
	m.assignments[assignment.ID] = assignment
	return assignment
}

func (m *memoryStore) submissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.submissions)
}

// UserRepository

func (m *memoryStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}

	user.ID = m.allocateID()
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id uint) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *memoryStore) GetByUsernameAndRole(ctx context.Context, username, role string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username && user.Role == role {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

// groupRepo adapts memoryStore to repository.GroupRepository. A separate
// adapter is needed because Create has a different receiver type per
// repository interface.
type groupRepo struct {
	store *memoryStore
}

func (r *groupRepo) Create(ctx context.Context, group *models.Group) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.groups {
		if existing.JoinCode == group.JoinCode {
			return gorm.ErrDuplicatedKey
		}
	}

	group.ID = r.store.allocateID()
	group.CreatedAt = time.Now()
	r.store.groups[group.ID] = *group
	return nil
}

func (r *groupRepo) GetByJoinCode(ctx context.Context, joinCode string) (models.Group, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, group := range r.store.groups {
		if group.JoinCode == joinCode {
			return group, nil
		}
	}
	return models.Group{}, gorm.ErrRecordNotFound
}

func (r *groupRepo) GetOwned(ctx context.Context, groupID, teacherID uint) (models.Group, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	group, ok := r.store.groups[groupID]
	if !ok || group.TeacherID != teacherID {
		return models.Group{}, gorm.ErrRecordNotFound
	}

	group.Teacher = r.store.users[group.TeacherID]
	return group, nil
}

func (r *groupRepo) GetForStudent(ctx context.Context, groupID, studentID uint) (repository.StudentGroupRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	group, ok := r.store.groups[groupID]
	if !ok || !r.store.hasMemberLocked(groupID, studentID) {
		return repository.StudentGroupRow{}, gorm.ErrRecordNotFound
	}

	return repository.StudentGroupRow{
		ID:          group.ID,
		Name:        group.Name,
		TeacherName: r.store.users[group.TeacherID].Username,
		CreatedAt:   group.CreatedAt,
	}, nil
}

func (r *groupRepo) ListByTeacher(ctx context.Context, teacherID uint) ([]repository.TeacherGroupRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows := make([]repository.TeacherGroupRow, 0)
	for _, group := range r.store.groups {
		if group.TeacherID != teacherID {
			continue
		}
		rows = append(rows, repository.TeacherGroupRow{
			ID:          group.ID,
			Name:        group.Name,
			JoinCode:    group.JoinCode,
			MemberCount: r.store.countMembersLocked(group.ID),
			CreatedAt:   group.CreatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (r *groupRepo) ListByStudent(ctx context.Context, studentID uint) ([]repository.StudentGroupRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows := make([]repository.StudentGroupRow, 0)
	for _, member := range r.store.members {
		if member.StudentID != studentID {
			continue
		}
		group := r.store.groups[member.GroupID]
		rows = append(rows, repository.StudentGroupRow{
			ID:          group.ID,
			Name:        group.Name,
			TeacherName: r.store.users[group.TeacherID].Username,
			CreatedAt:   group.CreatedAt,
		})
	}
	return rows, nil
}

func (r *groupRepo) ListMembers(ctx context.Context, groupID uint) ([]repository.GroupMemberRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows := make([]repository.GroupMemberRow, 0)
	for _, member := range r.store.members {
		if member.GroupID != groupID {
			continue
		}
		rows = append(rows, repository.GroupMemberRow{
			ID:       member.StudentID,
			Username: r.store.users[member.StudentID].Username,
		})
	}
	return rows, nil
}

func (r *groupRepo) AddMember(ctx context.Context, member *models.GroupMember) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.hasMemberLocked(member.GroupID, member.StudentID) {
		return gorm.ErrDuplicatedKey
	}

	member.ID = r.store.allocateID()
	member.CreatedAt = time.Now()
	r.store.members = append(r.store.members, *member)
	return nil
}

func (m *memoryStore) memberCount(groupID uint) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.countMembersLocked(groupID)
}

func (m *memoryStore) hasMemberLocked(groupID, studentID uint) bool {
	for _, member := range m.members {
		if member.GroupID == groupID && member.StudentID == studentID {
			return true
		}
	}
	return false
}

func (m *memoryStore) countMembersLocked(groupID uint) int64 {
	var count int64
	for _, member := range m.members {
		if member.GroupID == groupID {
			count++
		}
	}
	return count
}

// assignmentRepo adapts memoryStore to repository.AssignmentRepository.
type assignmentRepo struct {
	store *memoryStore
}

func (r *assignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	assignment.ID = r.store.allocateID()
	assignment.CreatedAt = time.Now()
	r.store.assignments[assignment.ID] = *assignment
	return nil
}

func (r *assignmentRepo) GetOwned(ctx context.Context, assignmentID, teacherID uint) (models.Assignment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	assignment, ok := r.store.assignments[assignmentID]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}

	group, ok := r.store.groups[assignment.GroupID]
	if !ok || group.TeacherID != teacherID {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}

	assignment.Group = group
	return assignment, nil
}

func (r *assignmentRepo) GetForStudent(ctx context.Context, assignmentID, studentID uint) (models.Assignment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	assignment, ok := r.store.assignments[assignmentID]
	if !ok || !r.store.hasMemberLocked(assignment.GroupID, studentID) {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}

	assignment.Group = r.store.groups[assignment.GroupID]
	return assignment, nil
}

func (r *assignmentRepo) ListByTeacher(ctx context.Context, teacherID uint) ([]repository.TeacherAssignmentRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows := make([]repository.TeacherAssignmentRow, 0)
	for _, assignment := range r.store.assignments {
		group := r.store.groups[assignment.GroupID]
		if group.TeacherID != teacherID {
			continue
		}
		rows = append(rows, repository.TeacherAssignmentRow{
			ID:              assignment.ID,
			GroupID:         assignment.GroupID,
			GroupName:       group.Name,
			Title:           assignment.Title,
			Description:     assignment.Description,
			Deadline:        assignment.Deadline,
			CreatedAt:       assignment.CreatedAt,
			SubmissionCount: r.store.countSubmissionsLocked(assignment.ID, 0),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (r *assignmentRepo) ListByStudent(ctx context.Context, studentID uint) ([]repository.StudentAssignmentRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows := make([]repository.StudentAssignmentRow, 0)
	for _, assignment := range r.store.assignments {
		if !r.store.hasMemberLocked(assignment.GroupID, studentID) {
			continue
		}
		group := r.store.groups[assignment.GroupID]
		rows = append(rows, repository.StudentAssignmentRow{
			ID:              assignment.ID,
			GroupID:         assignment.GroupID,
			GroupName:       group.Name,
			Title:           assignment.Title,
			Description:     assignment.Description,
			Deadline:        assignment.Deadline,
			CreatedAt:       assignment.CreatedAt,
			SubmissionCount: r.store.countSubmissionsLocked(assignment.ID, studentID),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m *memoryStore) countSubmissionsLocked(assignmentID, studentID uint) int64 {
	var count int64
	for _, submission := range m.submissions {
		if submission.AssignmentID != assignmentID {
			continue
		}
		if studentID != 0 && submission.StudentID != studentID {
			continue
		}
		count++
	}
	return count
}

// submissionRepo adapts memoryStore to repository.SubmissionRepository. The
// upsert mirrors the relational store: one row per (assignment, student),
// replaced in place.
type submissionRepo struct {
	store *memoryStore
}

func (r *submissionRepo) Upsert(ctx context.Context, submission *models.Submission) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, existing := range r.store.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			existing.SubmissionType = submission.SubmissionType
			existing.Content = submission.Content
			existing.Metadata = submission.Metadata
			existing.SubmittedAt = submission.SubmittedAt
			r.store.submissions[id] = existing
			submission.ID = id
			return nil
		}
	}

	submission.ID = r.store.allocateID()
	r.store.submissions[submission.ID] = *submission
	return nil
}

func (r *submissionRepo) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, submission := range r.store.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (r *submissionRepo) ListByAssignment(ctx context.Context, assignmentID uint) ([]repository.SubmissionWithUserRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows := make([]repository.SubmissionWithUserRow, 0)
	for _, submission := range r.store.submissions {
		if submission.AssignmentID != assignmentID {
			continue
		}
		rows = append(rows, repository.SubmissionWithUserRow{
			ID:             submission.ID,
			AssignmentID:   submission.AssignmentID,
			StudentID:      submission.StudentID,
			Username:       r.store.users[submission.StudentID].Username,
			SubmissionType: submission.SubmissionType,
			Content:        submission.Content,
			Metadata:       submission.Metadata,
			SubmittedAt:    submission.SubmittedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// failingSubmissionRepo fails Upsert while delegating everything else.
type failingSubmissionRepo struct {
	*submissionRepo
	upsertErr error
}

func (r *failingSubmissionRepo) Upsert(ctx context.Context, submission *models.Submission) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	return r.submissionRepo.Upsert(ctx, submission)
}

// memoryBlobStore records writes and deletions for assertions. putErr and
// deleteErr inject failures so the storage ordering contract can be
// exercised.
type memoryBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	deleted   []string
	nextKey   int
	putErr    error
	deleteErr error
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *memoryBlobStore) Put(ctx context.Context, data []byte, typeHint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return "", m.putErr
	}

	m.nextKey++
	key := fmt.Sprintf("blob-%d", m.nextKey)
	m.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memoryBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}

	delete(m.blobs, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryBlobStore) Resolve(key string) string {
	return "mem://" + key
}

func (m *memoryBlobStore) contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.blobs[key]
	return ok
}

func (m *memoryBlobStore) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.deleted...)
}
